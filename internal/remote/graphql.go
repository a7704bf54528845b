package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/machinebox/graphql"

	appLog "evdialog/internal/log"
	"evdialog/internal/model"
)

const eventFields = `
	id title location description allDay startTime endTime recurrence
	nylasCalendarName conflict
	notifications { userId notifyBefore }
	attachments { id name url contentType }
`

var (
	queryEvent = `query Event($eventId: ID!) { event(eventId: $eventId) {` + eventFields + `} }`

	queryMessage = `query Message($messageId: ID!) {
	message(messageId: $messageId) {
		id title preview info isDone isDeleted
		tags { id name }
		files { id name url contentType }
		event { id }
	}
}`

	queryMe = `query Me { me { id name email eventCalendars { id name } } }`

	querySharedAccess = `query GetSharedAccess { sharedAccess { targetUsers { id name email } } }`

	queryNotificationSettings = `query GetNotificationSettingsByTag($tagId: ID!) {
	notificationSettingsByTag(tagId: $tagId) { items { notifyBefore } }
}`

	queryEvents = `query Events($from: DateTime!, $to: DateTime!) { events(from: $from, to: $to) {` + eventFields + `} }`

	mutationCreateEvent = `mutation CreateEvent($messageId: ID!, $title: String, $startTime: DateTime, $endTime: DateTime,
	$location: String, $description: String, $allDay: Boolean, $notifications: [EventNotificationInput!],
	$attachmentIds: [ID!]) {
	createEvent(messageId: $messageId, title: $title, startTime: $startTime, endTime: $endTime,
		location: $location, description: $description, allDay: $allDay,
		notifications: $notifications, attachmentIds: $attachmentIds) {` + eventFields + `}
}`

	mutationUpdateEvent = `mutation UpdateEvent($eventId: ID!, $title: String, $startTime: DateTime, $endTime: DateTime,
	$location: String, $description: String, $allDay: Boolean, $notifications: [EventNotificationInput!],
	$attachmentIds: [ID!]) {
	updateEvent(eventId: $eventId, title: $title, startTime: $startTime, endTime: $endTime,
		location: $location, description: $description, allDay: $allDay,
		notifications: $notifications, attachmentIds: $attachmentIds) {` + eventFields + `}
}`

	mutationDeleteEvent = `mutation DeleteEvent($eventId: ID!) { deleteEvent(eventId: $eventId) }`
)

// maxResponse bounds the body kept for error decoding.
const maxResponse = 8 << 20

// GraphQLClient implements Client against a GraphQL-over-HTTP endpoint.
type GraphQLClient struct {
	endpoint string
	token    string
	gql      *graphql.Client
}

// NewGraphQLClient creates a client for endpoint. token may be empty.
func NewGraphQLClient(endpoint, token string, timeout time.Duration) *GraphQLClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: responseTap{next: http.DefaultTransport},
	}
	return &GraphQLClient{
		endpoint: endpoint,
		token:    token,
		gql:      graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient)),
	}
}

// tappedResponse is the raw answer to one operation.
type tappedResponse struct {
	status int
	body   []byte
}

type tapKey struct{}

// responseTap copies each response body into the tappedResponse carried by
// the request context. graphql.Client reports only the first error message,
// and conflicts are told apart by their code.
type responseTap struct {
	next http.RoundTripper
}

func (t responseTap) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	rec, ok := req.Context().Value(tapKey{}).(*tappedResponse)
	if !ok {
		return resp, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	rec.status = resp.StatusCode
	rec.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

type gqlError struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// serviceErrors reads the "errors" list of a response body. The code is
// taken from the entry itself or from its extensions.
func serviceErrors(body []byte) Errors {
	var envelope struct {
		Errors []gqlError `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}
	errs := make(Errors, 0, len(envelope.Errors))
	for _, e := range envelope.Errors {
		code := e.Code
		if code == "" {
			code = e.Extensions.Code
		}
		errs = append(errs, GraphQLError{Message: e.Message, Code: code})
	}
	return errs
}

// do runs one operation and decodes "data" into out. Service-level errors are
// returned as Errors; anything that kept the request from completing is err.
func (c *GraphQLClient) do(ctx context.Context, op, query string, vars map[string]any, out any) (Errors, error) {
	if c.endpoint == "" {
		return nil, errors.New("remote: endpoint is not configured")
	}

	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if out == nil {
		out = &json.RawMessage{}
	}

	rec := &tappedResponse{}
	start := time.Now()
	runErr := c.gql.Run(context.WithValue(ctx, tapKey{}, rec), req, out)

	appLog.Debug("remote request", "op", op, "endpoint", redactURL(c.endpoint),
		"status", rec.status, "elapsed", time.Since(start))

	if errs := serviceErrors(rec.body); len(errs) > 0 {
		return errs, nil
	}
	if rec.status != 0 && rec.status/100 != 2 {
		return nil, fmt.Errorf("remote: %s: HTTP %d", op, rec.status)
	}
	if runErr != nil {
		return nil, fmt.Errorf("remote: %s: %w", op, runErr)
	}
	return nil, nil
}

// query runs a read operation; service errors become a Go error.
func (c *GraphQLClient) query(ctx context.Context, op, q string, vars map[string]any, out any) error {
	errs, err := c.do(ctx, op, q, vars, out)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("remote: %s: %w", op, errs)
	}
	return nil
}

func (c *GraphQLClient) Event(ctx context.Context, eventID string) (*model.Event, error) {
	var data struct {
		Event *model.Event `json:"event"`
	}
	if err := c.query(ctx, "event", queryEvent, map[string]any{"eventId": eventID}, &data); err != nil {
		return nil, err
	}
	if data.Event == nil {
		return nil, fmt.Errorf("remote: event %q not found", eventID)
	}
	return data.Event, nil
}

func (c *GraphQLClient) Message(ctx context.Context, messageID string) (*model.Message, error) {
	var data struct {
		Message *model.Message `json:"message"`
	}
	if err := c.query(ctx, "message", queryMessage, map[string]any{"messageId": messageID}, &data); err != nil {
		return nil, err
	}
	if data.Message == nil {
		return nil, fmt.Errorf("remote: message %q not found", messageID)
	}
	return data.Message, nil
}

func (c *GraphQLClient) CurrentUser(ctx context.Context) (*model.User, error) {
	var data struct {
		Me *model.User `json:"me"`
	}
	if err := c.query(ctx, "me", queryMe, nil, &data); err != nil {
		return nil, err
	}
	if data.Me == nil {
		return nil, errors.New("remote: current user unavailable")
	}
	return data.Me, nil
}

func (c *GraphQLClient) SharedAccess(ctx context.Context) ([]model.User, error) {
	var data struct {
		SharedAccess *struct {
			TargetUsers []model.User `json:"targetUsers"`
		} `json:"sharedAccess"`
	}
	if err := c.query(ctx, "sharedAccess", querySharedAccess, nil, &data); err != nil {
		return nil, err
	}
	if data.SharedAccess == nil {
		return nil, nil
	}
	return data.SharedAccess.TargetUsers, nil
}

func (c *GraphQLClient) NotificationSettingsByTag(ctx context.Context, tagID string) ([]model.NotificationSetting, error) {
	var data struct {
		Settings *struct {
			Items []model.NotificationSetting `json:"items"`
		} `json:"notificationSettingsByTag"`
	}
	if err := c.query(ctx, "notificationSettingsByTag", queryNotificationSettings, map[string]any{"tagId": tagID}, &data); err != nil {
		return nil, err
	}
	if data.Settings == nil {
		return nil, nil
	}
	return data.Settings.Items, nil
}

func (c *GraphQLClient) Events(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	var data struct {
		Events []model.Event `json:"events"`
	}
	vars := map[string]any{
		"from": from.Format(time.RFC3339),
		"to":   to.Format(time.RFC3339),
	}
	if err := c.query(ctx, "events", queryEvents, vars, &data); err != nil {
		return nil, err
	}
	return data.Events, nil
}

func (c *GraphQLClient) CreateEvent(ctx context.Context, messageID string, in EventInput) (MutationResult, error) {
	vars, err := inputVars(in)
	if err != nil {
		return MutationResult{}, err
	}
	vars["messageId"] = messageID

	var data struct {
		CreateEvent *model.Event `json:"createEvent"`
	}
	errs, err := c.do(ctx, "createEvent", mutationCreateEvent, vars, &data)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Event: data.CreateEvent, Errors: errs}, nil
}

func (c *GraphQLClient) UpdateEvent(ctx context.Context, eventID string, in EventInput) (MutationResult, error) {
	vars, err := inputVars(in)
	if err != nil {
		return MutationResult{}, err
	}
	vars["eventId"] = eventID

	var data struct {
		UpdateEvent *model.Event `json:"updateEvent"`
	}
	errs, err := c.do(ctx, "updateEvent", mutationUpdateEvent, vars, &data)
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Event: data.UpdateEvent, Errors: errs}, nil
}

func (c *GraphQLClient) DeleteEvent(ctx context.Context, eventID string) error {
	var data struct {
		DeleteEvent bool `json:"deleteEvent"`
	}
	if err := c.query(ctx, "deleteEvent", mutationDeleteEvent, map[string]any{"eventId": eventID}, &data); err != nil {
		return err
	}
	if !data.DeleteEvent {
		return fmt.Errorf("remote: event %q was not deleted", eventID)
	}
	return nil
}

// inputVars flattens EventInput into GraphQL variables through its JSON form.
func inputVars(in EventInput) (map[string]any, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	vars := make(map[string]any)
	if err := json.Unmarshal(b, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// redactURL keeps scheme and host of an endpoint for logging.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
