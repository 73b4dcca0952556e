package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Credentials carries the passwords for an encrypted document. Either
// password opens the file; pdfcpu picks whichever matches.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"  mapstructure:"user_password"`
	OwnerPassword string `json:"owner_password,omitempty" mapstructure:"owner_password"`
}

// Empty reports whether no password is set.
func (c Credentials) Empty() bool {
	return c.UserPassword == "" && c.OwnerPassword == ""
}

// ErrPasswordRequired is returned when an encrypted file is opened without
// credentials.
var ErrPasswordRequired = errors.New("document is password protected")

// IsEncrypted reports whether the document requires a password to open.
func IsEncrypted(path string) (bool, error) {
	if _, err := api.PageCountFile(path); err != nil {
		if IsPasswordError(err) {
			return true, nil
		}
		return false, fmt.Errorf("inspect %s: %w", path, err)
	}
	return false, nil
}

// Unlock makes path readable for rendering. Unencrypted files pass through
// unchanged; encrypted files are decrypted into a temporary copy. The
// returned cleanup removes the copy and is never nil.
func Unlock(path string, creds Credentials) (string, func(), error) {
	noop := func() {}

	encrypted, err := IsEncrypted(path)
	if err != nil {
		return "", noop, err
	}
	if !encrypted {
		return path, noop, nil
	}
	if creds.Empty() {
		return "", noop, fmt.Errorf("%s: %w", path, ErrPasswordRequired)
	}

	conf := model.NewDefaultConfiguration()
	conf.UserPW = creds.UserPassword
	conf.OwnerPW = creds.OwnerPassword

	tmp, err := os.CreateTemp("", "folio-unlocked-*.pdf")
	if err != nil {
		return "", noop, fmt.Errorf("create temporary copy: %w", err)
	}
	_ = tmp.Close()

	if err := api.DecryptFile(path, tmp.Name(), conf); err != nil {
		_ = os.Remove(tmp.Name())
		return "", noop, fmt.Errorf("decrypt %s: %w", path, err)
	}

	cleanup := func() { _ = os.Remove(tmp.Name()) }
	return tmp.Name(), cleanup, nil
}

// IsPasswordError reports whether err indicates a missing or wrong
// password. pdfcpu reports these conditions only through error text.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"encrypted", "password", "decrypt", "authentication"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
