package orchestrator

import (
	"encoding/xml"
)

// CallControl is a rendered telephony call-control document.
type CallControl string

const apology = "We're sorry, but we're experiencing technical difficulties. Please try again later."

type stream struct {
	URL string `xml:"url,attr"`
}

type connect struct {
	Action string `xml:"action,attr,omitempty"`
	Stream stream `xml:"Stream"`
}

type hangup struct{}

type callResponse struct {
	XMLName xml.Name `xml:"Response"`
	Connect *connect `xml:"Connect,omitempty"`
	Say     string   `xml:"Say,omitempty"`
	Hangup  *hangup  `xml:"Hangup,omitempty"`
}

func render(r callResponse) CallControl {
	out, err := xml.Marshal(r)
	if err != nil {
		// Only plain strings are marshalled; this cannot happen.
		panic(err)
	}
	return CallControl(xml.Header + string(out))
}

// Bridge connects the caller's media stream to joinURL. When the stream
// ends the telephony provider requests action.
func Bridge(joinURL, action string) CallControl {
	return render(callResponse{Connect: &connect{Action: action, Stream: stream{URL: joinURL}}})
}

// Apology tells the caller something went wrong and hangs up.
func Apology() CallControl {
	return render(callResponse{Say: apology, Hangup: &hangup{}})
}

// Hangup ends the call.
func Hangup() CallControl {
	return render(callResponse{Hangup: &hangup{}})
}
