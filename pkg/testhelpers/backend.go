package testhelpers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/datatram-io/datatram-go/pkg/models"
)

// StubBackend is an in-memory implementation of the Datatram backend wire
// surface for tests: sources and destinations answer with the {data: [...]}
// envelope, connections and histories with bare arrays, create/update accept
// multipart forms, and the userId query parameter on the history endpoint is
// ignored the way deployed backends ignore it.
type StubBackend struct {
	Server *httptest.Server

	mu           sync.Mutex
	sources      map[int]models.Source
	destinations map[int]models.Destination
	connections  map[int]models.Connection
	histories    []models.ConnectionHistory
	nextID       int

	// RowsProcessed is returned by the load-job endpoint.
	RowsProcessed int64

	// JobGate, when set, makes the load-job endpoint wait for a value
	// before answering. Lets tests hold a job in flight.
	JobGate chan struct{}

	// forcedStatus, when set, makes the next request fail with that status
	// and body.
	forcedStatus int
	forcedBody   string

	lastAuth     string
	lastQuery    url.Values
	requestCount map[string]int
}

// NewStubBackend starts the stub. Callers own shutdown via Close.
func NewStubBackend() *StubBackend {
	b := &StubBackend{
		sources:       make(map[int]models.Source),
		destinations:  make(map[int]models.Destination),
		connections:   make(map[int]models.Connection),
		nextID:        1,
		RowsProcessed: 1200,
		requestCount:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sources/all", b.listSources)
	mux.HandleFunc("GET /sources/{id}", b.getSource)
	mux.HandleFunc("POST /sources", b.createSource)
	mux.HandleFunc("PATCH /sources/{id}", b.updateSource)
	mux.HandleFunc("DELETE /sources/{id}", b.deleteSource)

	mux.HandleFunc("GET /destinations/all", b.listDestinations)
	mux.HandleFunc("GET /destinations/{id}", b.getDestination)
	mux.HandleFunc("POST /destinations", b.createDestination)
	mux.HandleFunc("PATCH /destinations/{id}", b.updateDestination)
	mux.HandleFunc("DELETE /destinations/{id}", b.deleteDestination)

	mux.HandleFunc("GET /connections/all", b.listConnections)
	mux.HandleFunc("GET /connections/{id}", b.getConnection)
	mux.HandleFunc("POST /connections", b.createConnection)
	mux.HandleFunc("PATCH /connections/{id}", b.updateConnection)
	mux.HandleFunc("DELETE /connections/{id}", b.deleteConnection)
	mux.HandleFunc("POST /connections/connect-to-bigquery", b.connectToBigQuery)

	mux.HandleFunc("GET /connection-histories/all", b.listHistories)

	b.Server = httptest.NewServer(b.intercept(mux))
	return b
}

// Close shuts the stub down.
func (b *StubBackend) Close() {
	b.Server.Close()
}

// URL returns the stub's base URL.
func (b *StubBackend) URL() string {
	return b.Server.URL
}

// FailNext makes the next request answer with status and body.
func (b *StubBackend) FailNext(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forcedStatus = status
	b.forcedBody = body
}

// LastAuth returns the Authorization header of the most recent request.
func (b *StubBackend) LastAuth() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAuth
}

// LastQuery returns the query parameters of the most recent request.
func (b *StubBackend) LastQuery() url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastQuery
}

// Requests returns how many requests hit the given "METHOD /path" route.
func (b *StubBackend) Requests(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requestCount[route]
}

// SeedSource inserts a source and returns it with an assigned id.
func (b *StubBackend) SeedSource(s models.Source) models.Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.ID = b.nextID
	b.nextID++
	b.sources[s.ID] = s
	return s
}

// SeedDestination inserts a destination and returns it with an assigned id.
func (b *StubBackend) SeedDestination(d models.Destination) models.Destination {
	b.mu.Lock()
	defer b.mu.Unlock()
	d.ID = b.nextID
	b.nextID++
	b.destinations[d.ID] = d
	return d
}

// SeedConnection inserts a connection and returns it with an assigned id.
func (b *StubBackend) SeedConnection(c models.Connection) models.Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.ID = b.nextID
	b.nextID++
	b.connections[c.ID] = c
	return c
}

// SeedHistory appends a raw history entry.
func (b *StubBackend) SeedHistory(h models.ConnectionHistory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h.ID = b.nextID
	b.nextID++
	b.histories = append(b.histories, h)
}

// HasSource reports whether a source id still exists.
func (b *StubBackend) HasSource(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sources[id]
	return ok
}

func (b *StubBackend) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.lastAuth = r.Header.Get("Authorization")
		b.lastQuery = r.URL.Query()
		b.requestCount[r.Method+" "+r.URL.Path]++
		forced, body := b.forcedStatus, b.forcedBody
		b.forcedStatus, b.forcedBody = 0, ""
		b.mu.Unlock()

		if forced != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(forced)
			fmt.Fprint(w, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	return id, err == nil && id > 0
}

// ---- sources ----

func (b *StubBackend) listSources(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	items := make([]models.Source, 0, len(b.sources))
	for _, s := range b.sources {
		items = append(items, s)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

func (b *StubBackend) getSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	s, found := b.sources[id]
	b.mu.Unlock()
	if !ok || !found {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (b *StubBackend) createSource(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	if r.FormValue("name") == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	b.mu.Lock()
	s := models.Source{
		ID:        b.nextID,
		Name:      r.FormValue("name"),
		Host:      r.FormValue("host"),
		Type:      models.SourceType(r.FormValue("type")),
		UserID:    1,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	b.nextID++
	if meta := r.FormValue("metadata"); meta != "" {
		json.Unmarshal([]byte(meta), &s.Metadata)
	}
	if f := formFileName(r, "file"); f != "" {
		s.File = f
	}
	if f := formFileName(r, "image"); f != "" {
		s.Image = f
	}
	b.sources[s.ID] = s
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, s)
}

func (b *StubBackend) updateSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, found := b.sources[id]
	if !ok || !found {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}

	if v := r.FormValue("name"); v != "" {
		s.Name = v
	}
	if v := r.FormValue("host"); v != "" {
		s.Host = v
	}
	if v := r.FormValue("type"); v != "" {
		s.Type = models.SourceType(v)
	}
	if v := r.FormValue("metadata"); v != "" {
		json.Unmarshal([]byte(v), &s.Metadata)
	}
	s.UpdatedAt = time.Now().UTC()
	b.sources[id] = s

	writeJSON(w, http.StatusOK, s)
}

func (b *StubBackend) deleteSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	_, found := b.sources[id]
	delete(b.sources, id)
	b.mu.Unlock()
	if !ok || !found {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ---- destinations ----

func (b *StubBackend) listDestinations(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	items := make([]models.Destination, 0, len(b.destinations))
	for _, d := range b.destinations {
		items = append(items, d)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

func (b *StubBackend) getDestination(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	d, found := b.destinations[id]
	b.mu.Unlock()
	if !ok || !found {
		writeError(w, http.StatusNotFound, "destination not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (b *StubBackend) createDestination(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	if r.FormValue("name") == "" || r.FormValue("type") == "" {
		writeError(w, http.StatusBadRequest, "name and type are required")
		return
	}

	b.mu.Lock()
	d := models.Destination{
		ID:              b.nextID,
		Name:            r.FormValue("name"),
		Type:            models.DestinationType(r.FormValue("type")),
		ProjectID:       r.FormValue("projectId"),
		URL:             r.FormValue("url"),
		DatasetID:       r.FormValue("datasetId"),
		TargetTableName: r.FormValue("targetTableName"),
		UserID:          1,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	b.nextID++
	if meta := r.FormValue("metadata"); meta != "" {
		json.Unmarshal([]byte(meta), &d.Metadata)
	}
	if f := formFileName(r, "image"); f != "" {
		d.Image = f
	}
	b.destinations[d.ID] = d
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, d)
}

func (b *StubBackend) updateDestination(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	d, found := b.destinations[id]
	if !ok || !found {
		writeError(w, http.StatusNotFound, "destination not found")
		return
	}

	for field, apply := range map[string]func(string){
		"name":            func(v string) { d.Name = v },
		"type":            func(v string) { d.Type = models.DestinationType(v) },
		"projectId":       func(v string) { d.ProjectID = v },
		"url":             func(v string) { d.URL = v },
		"datasetId":       func(v string) { d.DatasetID = v },
		"targetTableName": func(v string) { d.TargetTableName = v },
	} {
		if v := r.FormValue(field); v != "" {
			apply(v)
		}
	}
	d.UpdatedAt = time.Now().UTC()
	b.destinations[id] = d

	writeJSON(w, http.StatusOK, d)
}

func (b *StubBackend) deleteDestination(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	_, found := b.destinations[id]
	delete(b.destinations, id)
	b.mu.Unlock()
	if !ok || !found {
		writeError(w, http.StatusNotFound, "destination not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ---- connections ----

func (b *StubBackend) listConnections(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	items := make([]models.Connection, 0, len(b.connections))
	for _, c := range b.connections {
		items = append(items, c)
	}
	b.mu.Unlock()
	// Bare array, no envelope.
	writeJSON(w, http.StatusOK, items)
}

func (b *StubBackend) getConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	c, found := b.connections[id]
	b.mu.Unlock()
	if !ok || !found {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (b *StubBackend) createConnection(w http.ResponseWriter, r *http.Request) {
	var payload models.CreateConnection
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	src, srcOK := b.sources[payload.SourceID]
	dst, dstOK := b.destinations[payload.DestinationID]
	if !srcOK || !dstOK {
		writeError(w, http.StatusBadRequest, "source or destination not found")
		return
	}

	c := models.Connection{
		ID:              b.nextID,
		SourceID:        payload.SourceID,
		DestinationID:   payload.DestinationID,
		SourceName:      src.Name,
		DestinationName: dst.Name,
		SourceImage:     src.Image,
	}
	b.nextID++
	b.connections[c.ID] = c

	writeJSON(w, http.StatusCreated, c)
}

func (b *StubBackend) updateConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	var payload models.UpdateConnection
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, found := b.connections[id]
	if !ok || !found {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}

	if payload.SourceID != nil {
		src, srcOK := b.sources[*payload.SourceID]
		if !srcOK {
			writeError(w, http.StatusBadRequest, "source not found")
			return
		}
		c.SourceID = src.ID
		c.SourceName = src.Name
		c.SourceImage = src.Image
	}
	if payload.DestinationID != nil {
		dst, dstOK := b.destinations[*payload.DestinationID]
		if !dstOK {
			writeError(w, http.StatusBadRequest, "destination not found")
			return
		}
		c.DestinationID = dst.ID
		c.DestinationName = dst.Name
	}
	b.connections[id] = c

	writeJSON(w, http.StatusOK, c)
}

func (b *StubBackend) deleteConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	b.mu.Lock()
	_, found := b.connections[id]
	delete(b.connections, id)
	b.mu.Unlock()
	if !ok || !found {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ---- load job + histories ----

func (b *StubBackend) connectToBigQuery(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	gate := b.JobGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	var req models.LoadJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, found := b.connections[req.ConnectionID]
	if !found {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}

	userID := bearerSubject(r.Header.Get("Authorization"))
	metadata := map[string]json.RawMessage{
		"rowsProcessed": json.RawMessage(strconv.FormatInt(b.RowsProcessed, 10)),
	}
	if userID != "" {
		encoded, _ := json.Marshal(userID)
		metadata["userId"] = encoded
	}

	connID := c.ID
	b.histories = append(b.histories, models.ConnectionHistory{
		ID:            b.nextID,
		ConnectionID:  &connID,
		SourceID:      &c.SourceID,
		DestinationID: &c.DestinationID,
		AttemptedAt:   time.Now().UTC(),
		Status:        models.HistoryStatusSuccess,
		Metadata:      metadata,
	})
	b.nextID++

	writeJSON(w, http.StatusOK, models.LoadJobResult{
		Success:       true,
		Message:       "data loaded",
		RowsProcessed: b.RowsProcessed,
	})
}

func (b *StubBackend) listHistories(w http.ResponseWriter, r *http.Request) {
	// The userId query parameter is deliberately ignored, matching deployed
	// backends; clients must filter on their side.
	b.mu.Lock()
	items := make([]models.ConnectionHistory, len(b.histories))
	copy(items, b.histories)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, items)
}

func formFileName(r *http.Request, field string) string {
	if r.MultipartForm == nil {
		return ""
	}
	if files := r.MultipartForm.File[field]; len(files) > 0 {
		return files[0].Filename
	}
	return ""
}

// bearerSubject pulls the sub claim out of an unsigned test token.
func bearerSubject(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return ""
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	return claims.Sub
}
