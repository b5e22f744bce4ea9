package http

import (
	"errors"
	"net/http"

	"budgettable/internal/core"
	"budgettable/internal/log"
)

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.table.GetTable(r.Context())
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(table).Write(w)
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	seeded, err := s.table.InitializeSeed(r.Context())
	if err != nil {
		s.writeServiceError(w, r, log.OpSeed, err)
		return
	}
	msg := msgAlreadySeeded
	if seeded {
		msg = msgSeeded
	}
	NewJSONResponse().Message(msg).Write(w)
}

func (s *Server) handleAddPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := s.table.AddPeriod(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Body(period).Write(w)
}

func (s *Server) handleDeletePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.writeServiceError(w, r, log.OpDelete, err)
		return
	}
	if err := s.table.DeletePeriod(r.Context(), id); err != nil {
		s.writeServiceError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message(msgPeriodDeleted).Write(w)
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	var in core.NewRow
	if err := decodeJSONBody(w, r, &in); err != nil {
		if errors.Is(err, errMalformedBody) {
			ErrorResponse(http.StatusBadRequest, err.Error()).Write(w)
			return
		}
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}

	node, err := s.table.AddRow(r.Context(), in)
	if errors.Is(err, core.ErrNotFound) {
		ErrorResponse(http.StatusNotFound, detailParentNotFound).Write(w)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Body(node).Write(w)
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	if _, err := s.table.UpdateRowFields(r.Context(), id, parseRowPatch(r.URL.Query())); err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Message(msgRowUpdated).Write(w)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.writeServiceError(w, r, log.OpDelete, err)
		return
	}
	if err := s.table.DeleteRow(r.Context(), id); err != nil {
		s.writeServiceError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message(msgRowDeleted).Write(w)
}

func (s *Server) handleSetCell(w http.ResponseWriter, r *http.Request) {
	rowID, err := parseIDParam(r, "row_id")
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	periodID, err := parseIDParam(r, "period_id")
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	value, err := parseCellValue(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}

	cell, err := s.table.SetCellValue(r.Context(), rowID, periodID, value)
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(cell).Write(w)
}
