package tesseract

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Available reports whether the installed Tesseract data covers the
// given languages. Health endpoints call it; an empty langs list only
// checks that Tesseract itself answers.
func Available(langs ...string) error {
	c := gosseract.NewClient()
	defer c.Close()
	installed, err := c.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("query tesseract languages: %w", err)
	}
	for _, want := range langs {
		found := false
		for _, have := range installed {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("tesseract language %q is not installed (have %v)", want, installed)
		}
	}
	return nil
}
