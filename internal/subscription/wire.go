package subscription

import (
	"github.com/gorilla/websocket"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
)

// rpcRequest is a minimal JSON-RPC 2.0 envelope for logs_subscribe.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type logsFilterWire struct {
	Mentions []string `json:"mentions"`
}

type logsSubscribeConfig struct {
	Commitment string `json:"commitment"`
}

func sendSubscribeRequest(conn *websocket.Conn, filter chainrpc.LogsFilter) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []interface{}{
			logsFilterWire{Mentions: filter.ProgramIDs},
			logsSubscribeConfig{Commitment: string(chainrpc.CommitmentConfirmed)},
		},
	}
	return conn.WriteJSON(req)
}

// notification is the subset of a logsNotification payload the indexer
// reads.
type notification struct {
	Params struct {
		Result struct {
			Value struct {
				Signature string   `json:"signature"`
				Err       any      `json:"err"`
				Logs      []string `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// readLoop decodes frames off conn and forwards well-formed notifications
// to msgs. Malformed frames (including the initial subscription
// acknowledgement, which carries no "params") are silently skipped; a
// transport-level read error is reported on errs and ends the loop.
func readLoop(conn *websocket.Conn, msgs chan<- chainrpc.LogBundle, errs chan<- error) {
	for {
		var n notification
		if err := conn.ReadJSON(&n); err != nil {
			errs <- err
			return
		}
		if n.Params.Result.Value.Signature == "" {
			continue // subscription ack or unrelated frame
		}
		msgs <- chainrpc.LogBundle{
			Signature: n.Params.Result.Value.Signature,
			Err:       n.Params.Result.Value.Err != nil,
			Logs:      n.Params.Result.Value.Logs,
		}
	}
}
