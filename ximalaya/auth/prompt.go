package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/skip2/go-qrcode"
)

const LoginPageURL = "https://passport.ximalaya.com/page/web/login"

var ErrNotTerminal = errors.New("interactive login requires a terminal")

// PromptCookieSource shows the web login page and asks for the cookie of the
// browser session after logging in.
type PromptCookieSource struct {
	In  *os.File
	Out *os.File
}

func NewPromptCookieSource() *PromptCookieSource {
	return &PromptCookieSource{In: os.Stdin, Out: os.Stdout}
}

func (p *PromptCookieSource) Cookie(ctx context.Context) (string, error) {
	if fd := p.In.Fd(); !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return "", ErrNotTerminal
	}

	qr, err := qrcode.New(LoginPageURL, qrcode.Medium)
	if nil != err {
		return "", fmt.Errorf("failed to generate login page QR code: %v", err)
	}

	fmt.Fprintln(p.Out, qr.ToSmallString(false))
	fmt.Fprintln(p.Out, "Log in at "+text.Colors{text.Bold, text.FgCyan}.Sprint(LoginPageURL)+" or scan the code above.")
	fmt.Fprintln(p.Out, text.Faint.Sprint("Then copy the Cookie request header of any www.ximalaya.com page request."))

	if err := ctx.Err(); nil != err {
		return "", err
	}

	var cookie string
	prompt := &survey.Password{Message: "Cookie:"} //nolint:exhaustruct
	if err := survey.AskOne(
		prompt,
		&cookie,
		survey.WithValidator(survey.Required),
		survey.WithStdio(p.In, p.Out, os.Stderr),
	); nil != err {
		if errors.Is(err, terminal.InterruptErr) {
			return "", context.Canceled
		}

		return "", fmt.Errorf("failed to read cookie: %v", err)
	}

	return strings.TrimSpace(cookie), nil
}
