package web

import (
	"net/http"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/core"
)

type shareRequest struct {
	Receiver     string `json:"receiver"`
	ReceiverType string `json:"receiverType"`
	Permissions  struct {
		Read   bool `json:"read"`
		Create bool `json:"create"`
		Update bool `json:"update"`
		Delete bool `json:"delete"`
		Manage bool `json:"manage"`
	} `json:"permissions"`
}

type sharePermissionRequest struct {
	Permission string `json:"permission"`
	Value      *bool  `json:"value"`
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "table")
	if err != nil {
		respondError(w, r, err)
		return
	}
	shares, err := s.client.ListShares(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shares)
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "table")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	share, err := s.client.CreateShare(r.Context(), tableID, client.ShareInput{
		Receiver:     req.Receiver,
		ReceiverType: req.ReceiverType,
		Read:         req.Permissions.Read,
		Create:       req.Permissions.Create,
		Update:       req.Permissions.Update,
		Delete:       req.Permissions.Delete,
		Manage:       req.Permissions.Manage,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:  audit.ActionShareCreate,
		TableID: tableID,
		Values: map[string]any{
			"shareId":      share.ID,
			"receiver":     share.Receiver,
			"receiverType": share.ReceiverType,
		},
	})
	writeJSON(w, http.StatusCreated, share)
}

func (s *Server) handleUpdateShare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "share")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req sharePermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Value == nil {
		respondError(w, r, core.NewValidationError("value", "", "value is required"))
		return
	}

	share, err := s.client.UpdateSharePermission(r.Context(), id, req.Permission, *req.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:  audit.ActionShareUpdate,
		TableID: share.NodeID,
		Values:  map[string]any{"shareId": id, "permission": req.Permission, "value": *req.Value},
	})
	writeJSON(w, http.StatusOK, share)
}

func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "share")
	if err != nil {
		respondError(w, r, err)
		return
	}

	share, err := s.client.DeleteShare(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:  audit.ActionShareDelete,
		TableID: share.NodeID,
		Values:  map[string]any{"shareId": id, "receiver": share.Receiver},
	})
	writeJSON(w, http.StatusOK, share)
}
