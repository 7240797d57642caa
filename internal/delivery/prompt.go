package delivery

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Prompt asks the operator to open an authorization URL and paste back
// the code the provider displays.
type Prompt struct {
	In  io.Reader
	Out io.Writer

	// QR additionally renders the URL as a terminal QR code, handy on a
	// handheld where typing a long URL into a phone is painful.
	QR bool
}

// AuthorizationCode shows authURL and reads one line of input.
func (p *Prompt) AuthorizationCode(authURL string) (string, error) {
	if p == nil || p.In == nil || p.Out == nil {
		return "", errors.New("no interactive prompt available")
	}

	fmt.Fprintln(p.Out, "Open the following URL in your web browser to authenticate, then enter the generated code:")
	fmt.Fprintln(p.Out, authURL)

	if p.QR {
		qr, err := qrcode.New(authURL, qrcode.Low)
		if err == nil {
			fmt.Fprintln(p.Out)
			fmt.Fprint(p.Out, qr.ToSmallString(false))
		}
	}

	fmt.Fprint(p.Out, "Code: ")

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read code: %w", err)
	}

	code := strings.TrimSpace(line)
	if code == "" {
		return "", errors.New("no authorization code entered")
	}
	return code, nil
}
