package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/traildig/traildig-server/internal/domain"
	"github.com/traildig/traildig-server/internal/service"
)

func (s *Server) registerWorkSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listWorkSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List work sessions",
		Description: "Returns the caller's work sessions, newest first",
		Tags:        []string{"Work Sessions"},
		Security:    bearerSecurity,
		Middlewares: s.protected(),
	}, s.handleListWorkSessions)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createWorkSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create work session",
		Description:   "Records a work session owned by the caller. Tags are resolved by name.",
		Tags:          []string{"Work Sessions"},
		Security:      bearerSecurity,
		Middlewares:   s.protected(),
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateWorkSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getWorkSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get work session",
		Description: "Returns a work session owned by the caller",
		Tags:        []string{"Work Sessions"},
		Security:    bearerSecurity,
		Middlewares: s.protected(),
	}, s.handleGetWorkSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "replaceWorkSession",
		Method:      http.MethodPut,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Replace work session",
		Description: "Full update: title, time_minutes and number_people are required",
		Tags:        []string{"Work Sessions"},
		Security:    bearerSecurity,
		Middlewares: s.protected(),
	}, s.handleReplaceWorkSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateWorkSession",
		Method:      http.MethodPatch,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Update work session",
		Description: "Partial update: only fields present in the body change. An empty tags list clears all tags.",
		Tags:        []string{"Work Sessions"},
		Security:    bearerSecurity,
		Middlewares: s.protected(),
	}, s.handleUpdateWorkSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteWorkSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{id}",
		Summary:       "Delete work session",
		Description:   "Deletes a work session owned by the caller",
		Tags:          []string{"Work Sessions"},
		Security:      bearerSecurity,
		Middlewares:   s.protected(),
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteWorkSession)
}

// === DTOs ===

// TagRefRequest names a tag in a work session payload.
type TagRefRequest struct {
	Name string `json:"name" doc:"Tag name"`
}

// WorkSessionRequest is the body of create, replace and update calls.
// Every field is optional at the schema level; the service enforces what
// each operation requires. Unknown fields such as owner are ignored.
type WorkSessionRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	Title        *string          `json:"title,omitempty" doc:"Short title"`
	Description  *string          `json:"description,omitempty" doc:"Free text; HTML is converted to Markdown"`
	TimeMinutes  *int             `json:"time_minutes,omitempty" doc:"Minutes of work"`
	NumberPeople *int             `json:"number_people,omitempty" doc:"Crew size"`
	Link         *string          `json:"link,omitempty" doc:"Related link"`
	OccurredAt   *string          `json:"occurred_at,omitempty" doc:"Naive timestamp YYYY-MM-DDThh:mm[:ss]; no timezone"`
	Tags         *[]TagRefRequest `json:"tags,omitempty" doc:"Tags by name; replaces all attachments when present"`
}

// WorkSessionBodyInput carries a body for create.
type WorkSessionBodyInput struct {
	Body WorkSessionRequest
}

// WorkSessionUpdateInput carries an id and a body for replace and update.
type WorkSessionUpdateInput struct {
	ID   string `path:"id" doc:"Work session ID"`
	Body WorkSessionRequest
}

// WorkSessionIDInput identifies a work session.
type WorkSessionIDInput struct {
	ID string `path:"id" doc:"Work session ID"`
}

// ListWorkSessionsInput contains parameters for listing work sessions.
type ListWorkSessionsInput struct {
	Q      string `query:"q" doc:"Full-text filter over title, description and tag names"`
	Tag    string `query:"tag" doc:"Only sessions carrying this tag"`
	Limit  int    `query:"limit" minimum:"0" maximum:"500" doc:"Page size; 0 returns everything"`
	Offset int    `query:"offset" minimum:"0" doc:"Number of sessions to skip"`
}

// WorkSessionSummary is the list shape of a work session.
type WorkSessionSummary struct {
	ID           string        `json:"id" doc:"Work session ID"`
	Title        string        `json:"title" doc:"Short title"`
	TimeMinutes  int           `json:"time_minutes" doc:"Minutes of work"`
	NumberPeople int           `json:"number_people" doc:"Crew size"`
	Link         string        `json:"link" doc:"Related link"`
	OccurredAt   *string       `json:"occurred_at" doc:"Naive timestamp, or null"`
	Tags         []TagResponse `json:"tags" doc:"Attached tags with their totals"`
}

// WorkSessionDetail is the single-item shape: the summary plus description.
type WorkSessionDetail struct {
	WorkSessionSummary
	Description string `json:"description" doc:"Free text"`
}

// ListWorkSessionsResponse contains a list of work sessions.
type ListWorkSessionsResponse struct {
	Sessions []WorkSessionSummary `json:"sessions" doc:"Work sessions, newest first"`
}

// ListWorkSessionsOutput wraps the list response for Huma.
type ListWorkSessionsOutput struct {
	Body ListWorkSessionsResponse
}

// WorkSessionOutput wraps the detail shape for Huma.
type WorkSessionOutput struct {
	Body WorkSessionDetail
}

// === Handlers ===

func (s *Server) handleListWorkSessions(ctx context.Context, input *ListWorkSessionsInput) (*ListWorkSessionsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := s.services.WorkSession.List(ctx, userID, service.ListWorkSessionsParams{
		Query:  input.Q,
		Tag:    input.Tag,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}

	resp := make([]WorkSessionSummary, len(sessions))
	for i, ws := range sessions {
		resp[i] = mapWorkSessionSummary(ws)
	}

	return &ListWorkSessionsOutput{Body: ListWorkSessionsResponse{Sessions: resp}}, nil
}

func (s *Server) handleCreateWorkSession(ctx context.Context, input *WorkSessionBodyInput) (*WorkSessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	ws, err := s.services.WorkSession.Create(ctx, userID, input.Body.toServiceInput())
	if err != nil {
		return nil, err
	}

	return &WorkSessionOutput{Body: mapWorkSessionDetail(ws)}, nil
}

func (s *Server) handleGetWorkSession(ctx context.Context, input *WorkSessionIDInput) (*WorkSessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	ws, err := s.services.WorkSession.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}

	return &WorkSessionOutput{Body: mapWorkSessionDetail(ws)}, nil
}

func (s *Server) handleReplaceWorkSession(ctx context.Context, input *WorkSessionUpdateInput) (*WorkSessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	ws, err := s.services.WorkSession.Replace(ctx, userID, input.ID, input.Body.toServiceInput())
	if err != nil {
		return nil, err
	}

	return &WorkSessionOutput{Body: mapWorkSessionDetail(ws)}, nil
}

func (s *Server) handleUpdateWorkSession(ctx context.Context, input *WorkSessionUpdateInput) (*WorkSessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	ws, err := s.services.WorkSession.Patch(ctx, userID, input.ID, input.Body.toServiceInput())
	if err != nil {
		return nil, err
	}

	return &WorkSessionOutput{Body: mapWorkSessionDetail(ws)}, nil
}

func (s *Server) handleDeleteWorkSession(ctx context.Context, input *WorkSessionIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.WorkSession.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

// === Mapping ===

func (r WorkSessionRequest) toServiceInput() service.WorkSessionInput {
	in := service.WorkSessionInput{
		Title:        r.Title,
		Description:  r.Description,
		TimeMinutes:  r.TimeMinutes,
		NumberPeople: r.NumberPeople,
		Link:         r.Link,
		OccurredAt:   r.OccurredAt,
	}
	if r.Tags != nil {
		refs := make([]domain.TagRef, len(*r.Tags))
		for i, t := range *r.Tags {
			refs[i] = domain.TagRef{Name: t.Name}
		}
		in.Tags = &refs
	}
	return in
}

func mapWorkSessionSummary(ws *domain.WorkSession) WorkSessionSummary {
	summary := WorkSessionSummary{
		ID:           ws.ID,
		Title:        ws.Title,
		TimeMinutes:  ws.TimeMinutes,
		NumberPeople: ws.NumberPeople,
		Link:         ws.Link,
		Tags:         make([]TagResponse, len(ws.Tags)),
	}
	if ws.OccurredAt != nil {
		at := ws.OccurredAt.String()
		summary.OccurredAt = &at
	}
	for i, t := range ws.Tags {
		summary.Tags[i] = mapTagResponse(t)
	}
	return summary
}

func mapWorkSessionDetail(ws *domain.WorkSession) WorkSessionDetail {
	return WorkSessionDetail{
		WorkSessionSummary: mapWorkSessionSummary(ws),
		Description:        ws.Description,
	}
}
