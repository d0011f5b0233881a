package handler

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-rmib/internal/rmib"
	"github.com/stemsi/exstem-rmib/internal/service"
	ws "github.com/stemsi/exstem-rmib/internal/websocket"
)

// SessionState is the snapshot served to pages that (re)connect.
type SessionState struct {
	View                rmib.View     `json:"view"`
	UnloadGuard         bool          `json:"unload_guard"`
	NextAutosaveSeconds float64       `json:"next_autosave_seconds"`
	Result              *SubmitResult `json:"result,omitempty"`
}

// SubmitResult is the client-facing submit outcome.
type SubmitResult struct {
	TotalScore      int    `json:"total_score"`
	PrimaryInterest string `json:"primary_interest,omitempty"`
	PrimaryLevel    int    `json:"primary_level,omitempty"`
	RedirectURL     string `json:"redirect_url"`
}

func stateOf(svc *service.SessionService) SessionState {
	st := SessionState{
		View:                svc.View(),
		UnloadGuard:         svc.UnloadGuard(),
		NextAutosaveSeconds: svc.NextAutosave().Seconds(),
	}
	if res := svc.Result(); res != nil {
		st.Result = &SubmitResult{
			TotalScore:      res.TotalScore,
			PrimaryInterest: res.PrimaryInterest,
			PrimaryLevel:    res.PrimaryLevel,
			RedirectURL:     res.RedirectURL,
		}
	}
	return st
}

// dispatch applies one validated action to the session. The presenter has
// already been told about the outcome when it returns.
func dispatch(ctx context.Context, svc *service.SessionService, req *ws.ActionRequest) error {
	switch req.Action {
	case ws.ActionStart:
		return svc.Start(ctx)
	case ws.ActionSetValue:
		return svc.SetValue(req.Category, req.Value)
	case ws.ActionUnset:
		return svc.Unset(req.Category)
	case ws.ActionMoveRank:
		return svc.MoveRank(*req.From, *req.To)
	case ws.ActionClear:
		return svc.Clear()
	case ws.ActionSave:
		return svc.SaveNow(ctx)
	case ws.ActionSubmit:
		_, err := svc.Submit(ctx)
		return err
	case ws.ActionPing:
		return nil
	default:
		return fmt.Errorf("unknown action: %s", req.Action)
	}
}

// announceSubmit tells every page the test is done and where to go next.
func announceSubmit(hub *ws.Hub, svc *service.SessionService) {
	res := svc.Result()
	if res == nil {
		return
	}
	hub.Broadcast(ws.SubmittedResponse{
		Event:           ws.EventSubmitted,
		TotalScore:      res.TotalScore,
		PrimaryInterest: res.PrimaryInterest,
		PrimaryLevel:    res.PrimaryLevel,
		RedirectURL:     res.RedirectURL,
	})
}
