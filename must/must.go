package must

// Be panics with msg when expr does not hold.
func Be(expr bool, msg string) {
	if !expr {
		panic("assertion failed: " + msg)
	}
}

func NilErr(err error) {
	if nil != err {
		panic("expected nil error, got: " + err.Error())
	}
}

// Get returns v, panicking when err is not nil. It is meant for values that
// cannot fail to build, such as decoding compile-time constants.
func Get[T any](v T, err error) T {
	NilErr(err)
	return v
}
