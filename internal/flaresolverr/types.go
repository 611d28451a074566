package flaresolverr

// Commands understood by the service.
const (
	cmdSessionsCreate  = "sessions.create"
	cmdSessionsDestroy = "sessions.destroy"
	cmdRequestGet      = "request.get"
)

// statusOK is the envelope status of a successful call.
const statusOK = "ok"

// request is the JSON body sent to the service.
type request struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url,omitempty"`
	Session    string `json:"session,omitempty"`
	MaxTimeout int64  `json:"maxTimeout,omitempty"`
}

// Response is the envelope returned for every command.
type Response struct {
	// Status is "ok" on success, "error" otherwise.
	Status string `json:"status"`

	// Message describes the outcome, and the failure when Status is not "ok".
	Message string `json:"message"`

	// Session is the id of a created session.
	Session string `json:"session,omitempty"`

	// Solution holds the loaded page for request.get.
	Solution *Solution `json:"solution,omitempty"`
}

// Solution is the page returned by request.get.
type Solution struct {
	// URL is the final URL after redirects.
	URL string `json:"url"`

	// Status is the HTTP status the browser received.
	Status int `json:"status"`

	// Response is the page markup.
	Response string `json:"response"`

	// UserAgent is the browser user agent used for the request.
	UserAgent string `json:"userAgent"`
}
