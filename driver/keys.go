package driver

import "github.com/tebeka/selenium"

// SendKeys types input into e. If clearField is set, the field is cleared
// first; Clear does not always empty a field, so when text remains it is
// selected with Ctrl+A and typed over.
func SendKeys(e Element, input string, clearField bool) error {
	if !clearField {
		return classify(e.SendKeys(input))
	}
	if err := e.Clear(); err != nil {
		return classify(err)
	}
	text, err := e.Text()
	if err != nil {
		return classify(err)
	}
	if text != "" {
		input = selenium.ControlKey + "a" + selenium.ControlKey + input
	}
	return classify(e.SendKeys(input))
}
