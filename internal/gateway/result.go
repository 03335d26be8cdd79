package gateway

import "fmt"

// Kind classifies how a webhook exchange ended.
type Kind string

const (
	KindOK        Kind = "ok"
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindMalformed Kind = "malformed"
)

// Result always carries text that can be shown to the user, including
// when the exchange failed.
type Result struct {
	Text       string
	Kind       Kind
	StatusCode int
	Err        error
}

func (r Result) OK() bool {
	return r.Kind == KindOK
}

func ok(status int, text string) Result {
	return Result{Text: text, Kind: KindOK, StatusCode: status}
}

func transportFailure(err error) Result {
	return Result{
		Text: "Network error: " + err.Error(),
		Kind: KindTransport,
		Err:  err,
	}
}

func statusFailure(status int) Result {
	return Result{
		Text:       fmt.Sprintf("Error: Webhook returned status code %d", status),
		Kind:       KindStatus,
		StatusCode: status,
		Err:        fmt.Errorf("webhook status %d", status),
	}
}

const previewRunes = 100

func malformed(status int, body []byte) Result {
	preview := []rune(string(body))
	if len(preview) > previewRunes {
		preview = preview[:previewRunes]
	}
	return Result{
		Text:       "Invalid JSON response: " + string(preview) + "...",
		Kind:       KindMalformed,
		StatusCode: status,
		Err:        fmt.Errorf("webhook returned invalid JSON"),
	}
}
