package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/habitatfuturo/habitat/internal/crm"
	"github.com/habitatfuturo/habitat/internal/lead"
)

func (s *Server) handleLeadCount(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.store.Count()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read lead store: %v", err)), nil
	}
	return mcp.NewToolResultText(strconv.Itoa(n)), nil
}

func (s *Server) handleRecentLeads(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 3)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	records, err := s.store.Tail(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read lead store: %v", err)), nil
	}

	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		row := make(map[string]string, len(crm.PreviewColumns))
		for _, c := range crm.PreviewColumns {
			row[c] = r.Get(c)
		}
		rows = append(rows, row)
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleRegisterLead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field := func(key string) string {
		v := req.GetString(key, "")
		if lead.IsUnset(v) {
			return lead.Unset
		}
		return v
	}
	cand := lead.Candidate{
		Name:        field("name"),
		Phone:       field("phone"),
		Appointment: field("appointment"),
		Interest:    s.catalog.NormalizeInterest(field("interest"), lead.Unset),
	}
	if cand.IsEmpty() {
		return mcp.NewToolResultError("at least one of name, phone, appointment, interest is required"), nil
	}

	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res, err := s.store.Upsert(ctx, cand, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save lead: %v", err)), nil
	}
	if res.Load == crm.LoadCorrupt {
		s.log.Warn("lead store was corrupt and has been rebuilt", "err", res.LoadErr)
	}
	if res.Outcome.Changed() && s.onRecord != nil {
		s.onRecord(res)
	}

	switch res.Outcome {
	case crm.OutcomeSkipped:
		return mcp.NewToolResultText("No record created: a name or phone is needed for a new customer."), nil
	case crm.OutcomeUnchanged:
		return mcp.NewToolResultText(fmt.Sprintf("Record already up to date (session %s).", res.Record.SessionID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Lead %s (session %s, match: %s).",
		res.Outcome, res.Record.SessionID, matchLabel(res.Match))), nil
}

func (s *Server) handleListProperties(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.catalog.Render()), nil
}

func matchLabel(m crm.Match) string {
	if m == crm.MatchNone {
		return "new"
	}
	return string(m)
}
