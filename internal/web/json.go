package web

import (
	"encoding/json"
	"net/http"

	"github.com/sweeney/water-filter/internal/logic"
)

// CommandResponse is the JSON body returned by POST /api/command/{name}.
type CommandResponse struct {
	Command  string `json:"command"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// writeCommandResult answers 200 for an accepted command and 409 for a
// rejected one. A rejection is an ordinary outcome, not a server fault.
func writeCommandResult(w http.ResponseWriter, res logic.CommandResult) {
	code := http.StatusOK
	if !res.Accepted {
		code = http.StatusConflict
	}
	writeCommandJSON(w, code, CommandResponse{
		Command:  string(res.Command),
		Accepted: res.Accepted,
		Reason:   res.Reason,
	})
}

func writeCommandError(w http.ResponseWriter, code int, cmd, reason string) {
	writeCommandJSON(w, code, CommandResponse{Command: cmd, Reason: reason})
}

func writeCommandJSON(w http.ResponseWriter, code int, body CommandResponse) {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
