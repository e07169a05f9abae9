package http

import (
	"time"

	"ledgerq/internal/core"
	"ledgerq/internal/engine"
)

// Wire shapes for the JSON API. Money and decimal values travel as strings
// so no precision is lost in transit.

type queryResponse struct {
	RequestID string     `json:"request_id,omitempty"`
	Narrative string     `json:"narrative"`
	Intent    string     `json:"intent"`
	Result    resultDTO  `json:"result"`
	Deltas    []deltaDTO `json:"deltas,omitempty"`
}

type resultDTO struct {
	Kind       string      `json:"kind"`
	Source     string      `json:"source"`
	Confidence float64     `json:"confidence"`
	Metric     string      `json:"metric,omitempty"`
	Scope      string      `json:"scope,omitempty"`
	Scalars    []scalarDTO `json:"scalars,omitempty"`
	Records    []recordDTO `json:"records,omitempty"`
	Error      *errorDTO   `json:"error,omitempty"`
}

type scalarDTO struct {
	Label   string `json:"label"`
	Value   string `json:"value,omitempty"`
	Unit    string `json:"unit"`
	Defined bool   `json:"defined"`
}

type recordDTO struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type deltaDTO struct {
	Op     string    `json:"op"`
	Month  string    `json:"month"`
	Record recordDTO `json:"record"`
}

type categoryDTO struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Count  int    `json:"count"`
}

type overviewResponse struct {
	Month      string        `json:"month"`
	Label      string        `json:"label"`
	Total      string        `json:"total"`
	Count      int           `json:"count"`
	Archived   bool          `json:"archived"`
	ByCategory []categoryDTO `json:"by_category"`
}

func toQueryResponse(requestID string, resp engine.Response) queryResponse {
	out := queryResponse{
		RequestID: requestID,
		Narrative: resp.Narrative,
		Intent:    string(resp.Intent),
		Result:    toResultDTO(resp.Result, resp.Narrative),
	}
	for _, d := range resp.Deltas {
		out.Deltas = append(out.Deltas, deltaDTO{Op: string(d.Op), Month: d.Month.String(), Record: toRecordDTO(d.Record)})
	}
	return out
}

func toResultDTO(r core.QueryResult, narrative string) resultDTO {
	out := resultDTO{
		Kind:       string(r.Kind),
		Source:     string(r.Source),
		Confidence: r.Confidence,
		Metric:     r.Metric,
		Scope:      r.Scope,
	}
	for _, s := range r.Scalars {
		dto := scalarDTO{Label: s.Label, Unit: string(s.Unit), Defined: s.Defined}
		if s.Defined {
			dto.Value = s.Value.String()
		}
		out.Scalars = append(out.Scalars, dto)
	}
	for _, e := range r.Records {
		out.Records = append(out.Records, toRecordDTO(e))
	}
	if r.Err != nil {
		// Reason and cause stay in the logs; clients get the sentence.
		out.Error = &errorDTO{Kind: string(r.Err.Kind), Token: r.Err.Token, Message: narrative}
	}
	return out
}

func toRecordDTO(e core.Expense) recordDTO {
	return recordDTO{
		ID:          e.ID,
		Date:        e.Date.String(),
		Description: e.Description,
		Amount:      e.Amount.Decimal().StringFixed(2),
		Category:    e.Category,
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

func toOverviewResponse(month core.MonthKey, ov core.MonthOverview) overviewResponse {
	out := overviewResponse{
		Month:      month.String(),
		Label:      month.Label(),
		Total:      ov.Total.Decimal().StringFixed(2),
		Count:      ov.Count,
		Archived:   ov.Archived,
		ByCategory: make([]categoryDTO, 0, len(ov.ByCategory)),
	}
	for _, c := range ov.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryDTO{Name: c.Name, Amount: c.Amount.Decimal().StringFixed(2), Count: c.Count})
	}
	return out
}
