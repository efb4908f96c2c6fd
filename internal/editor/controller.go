// Package editor implements the editing session: it loads the collection
// file from the remote store, applies form edits to the selected record and
// commits the collection back under optimistic concurrency.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/article"
	"github.com/starford/newsdesk/internal/collection"
	"github.com/starford/newsdesk/internal/images"
	"github.com/starford/newsdesk/internal/models"
	"github.com/starford/newsdesk/internal/remote"
)

// PlaceholderTitle is the title given to articles created in the editor.
const PlaceholderTitle = "New article"

// State is the session state.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateLoaded     State = "loaded"
	StateEditing    State = "editing"
	StateCommitting State = "committing"
	StateError      State = "error"
)

// Status is a point-in-time view of the session for the operator.
type Status struct {
	State    State  `json:"state"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Path     string `json:"path,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Version  string `json:"version,omitempty"`
	Count    int    `json:"count"`
	Selected int    `json:"selected"`
}

// Snapshot is the raw collection text as last loaded or committed.
type Snapshot struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Branch  string    `json:"branch"`
	Version string    `json:"version"`
	TakenAt time.Time `json:"taken_at"`
	Data    []byte    `json:"-"`
}

// Config holds the session defaults.
type Config struct {
	Path          string
	Branch        string
	CommitMessage string
	// DailyBase is used to derive today's file when no path is configured.
	DailyBase string
	Location  *time.Location
}

// Controller owns the collection, the selection, the concurrency token and
// the backup snapshot. It is safe for concurrent use; remote I/O runs
// outside the lock and at most one Load or Commit runs at a time.
type Controller struct {
	store    remote.Store
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
	notify   func(Status)
	richText RichText
	uploader *images.Uploader

	assigner *article.Assigner
	inflight atomic.Bool

	mu       sync.Mutex
	coll     *collection.Store
	state    State
	message  string
	code     string
	loaded   bool
	path     string
	branch   string
	token    string
	snapshot *Snapshot
}

// New creates a Controller reading and writing through store.
func New(store remote.Store, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		coll:  collection.New(),
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.cfg.Location == nil {
		c.cfg.Location = time.UTC
	}
	c.assigner = article.NewAssigner(c.now)
	return c
}

// Load replaces the collection with the contents of path on branch.
// Empty arguments fall back to the configured defaults.
func (c *Controller) Load(ctx context.Context, p, branch string) error {
	if !c.inflight.CompareAndSwap(false, true) {
		return apperr.ErrBusy
	}
	defer c.inflight.Store(false)

	start := time.Now()
	p, branch = c.target(p, branch)
	op := c.begin("load", StateLoading, "Loading "+p, slog.String("path", p), slog.String("branch", branch))

	file, err := c.store.Get(ctx, p, branch)
	if err != nil {
		return c.fail(op, start, err)
	}
	raw, err := remote.Decode(file)
	if err != nil {
		return c.fail(op, start, err)
	}
	records, err := article.Parse(raw)
	if err != nil {
		return c.fail(op, start, err)
	}
	for i := range records {
		c.assigner.Assign(&records[i], false)
	}

	c.mu.Lock()
	c.coll.ReplaceAll(records)
	if c.coll.Len() > 0 {
		_ = c.coll.Select(0)
		c.showLocked()
	}
	c.loaded = true
	c.path, c.branch, c.token = p, branch, file.Version
	c.snapshot = c.snapshotOf(p, branch, file.Version, raw)
	c.setLocked(StateLoaded, fmt.Sprintf("Loaded %d articles from %s", len(records), p), nil)
	c.mu.Unlock()

	c.done(op, start)
	return nil
}

// LocalSave copies form into the selected record and refreshes its
// identity and updated_at. A blank title keeps the current one.
func (c *Controller) LocalSave(form Form) error {
	start := time.Now()
	c.mu.Lock()
	if err := c.localSaveLocked(form); err != nil {
		c.mu.Unlock()
		return c.fail(operation{name: "local_save"}, start, err)
	}
	c.setLocked(StateEditing, "Saved locally", nil)
	c.mu.Unlock()
	c.done(operation{name: "local_save"}, start)
	return nil
}

// Commit writes the whole collection to path on branch. When form is not
// nil it is first applied with LocalSave. The token captured at load time
// is sent only when committing back to the loaded file; a stale token
// surfaces the store's conflict unchanged.
func (c *Controller) Commit(ctx context.Context, p, branch string, form *Form) error {
	if !c.inflight.CompareAndSwap(false, true) {
		return apperr.ErrBusy
	}
	defer c.inflight.Store(false)

	start := time.Now()
	p, branch = c.target(p, branch)

	c.mu.Lock()
	if form != nil {
		if err := c.localSaveLocked(*form); err != nil {
			c.mu.Unlock()
			return c.fail(operation{name: "commit"}, start, err)
		}
	}
	for i := 0; i < c.coll.Len(); i++ {
		_ = c.coll.Update(i, func(a *models.Article) { c.assigner.Assign(a, false) })
	}
	records := c.coll.Records()
	token := ""
	if c.loaded && p == c.path && branch == c.branch {
		token = c.token
	}
	c.mu.Unlock()

	data, err := article.Marshal(records)
	if err != nil {
		return c.fail(operation{name: "commit"}, start, err)
	}

	op := c.begin("commit", StateCommitting, "Committing "+p,
		slog.String("path", p), slog.String("branch", branch), slog.Int("count", len(records)))

	version, err := c.store.Put(ctx, remote.PutRequest{
		Path:    p,
		Branch:  branch,
		Message: c.commitMessage(p),
		Content: data,
		Version: token,
	})
	if err != nil {
		return c.fail(op, start, err)
	}

	c.mu.Lock()
	c.loaded = true
	c.path, c.branch, c.token = p, branch, version
	c.snapshot = c.snapshotOf(p, branch, version, data)
	c.setLocked(StateLoaded, fmt.Sprintf("Committed %d articles to %s", len(records), p), nil)
	c.mu.Unlock()

	c.done(op, start)
	return nil
}

// Backup returns the retained snapshot. It reflects the last load or
// commit, not unsaved edits.
func (c *Controller) Backup() (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return nil, fmt.Errorf("%w: no snapshot retained yet, load the collection first", apperr.ErrNotFound)
	}
	out := *c.snapshot
	out.Data = append([]byte{}, c.snapshot.Data...)
	return &out, nil
}

// NewArticle inserts a placeholder record at the front and selects it.
func (c *Controller) NewArticle() models.Article {
	a := article.Normalize(map[string]any{"title": PlaceholderTitle})
	c.mu.Lock()
	c.coll.InsertAtFront(a)
	c.showLocked()
	c.setLocked(StateEditing, "New article created", nil)
	c.mu.Unlock()
	return a
}

// Delete removes the record at index and clears the selection.
func (c *Controller) Delete(index int) error {
	start := time.Now()
	c.mu.Lock()
	removed, err := c.coll.At(index)
	if err == nil {
		err = c.coll.RemoveAt(index)
	}
	if err != nil {
		c.mu.Unlock()
		return c.fail(operation{name: "delete"}, start, err)
	}
	c.setLocked(StateEditing, fmt.Sprintf("Deleted %q", removed.Title), nil)
	c.mu.Unlock()
	c.done(operation{name: "delete"}, start)
	return nil
}

// Select makes the record at index the selected one.
func (c *Controller) Select(index int) (Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.coll.Select(index); err != nil {
		return Form{}, err
	}
	a := c.showLocked()
	c.setLocked(StateEditing, "", nil)
	return FormOf(a), nil
}

// Selected returns the selected record and its index.
func (c *Controller) Selected() (models.Article, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coll.Selected()
}

// Form returns the form values of the selected record.
func (c *Controller) Form() (Form, error) {
	a, _, err := c.Selected()
	if err != nil {
		return Form{}, err
	}
	return FormOf(a), nil
}

// Articles returns a copy of the collection.
func (c *Controller) Articles() []models.Article {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coll.Records()
}

// Filter returns the indices of records matching query.
func (c *Controller) Filter(query string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coll.Filter(query)
}

// Match is a record matched by Search, with its index at search time.
type Match struct {
	Index   int
	Article models.Article
}

// Search returns copies of the records matching query and the collection
// size, all read under one lock.
func (c *Controller) Search(query string) ([]Match, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	indices := c.coll.Filter(query)
	out := make([]Match, 0, len(indices))
	for _, i := range indices {
		a, err := c.coll.At(i)
		if err != nil {
			continue
		}
		out = append(out, Match{Index: i, Article: a})
	}
	return out, c.coll.Len()
}

// Find returns the record with id and its index.
func (c *Controller) Find(id string) (models.Article, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.coll.IndexOf(id)
	if i == collection.NoSelection {
		return models.Article{}, i, fmt.Errorf("%w: article %s", apperr.ErrNotFound, id)
	}
	a, err := c.coll.At(i)
	return a, i, err
}

// Import appends the records of a JSON array whose title|image
// fingerprint is not already present and returns how many were added.
func (c *Controller) Import(data []byte) (int, error) {
	start := time.Now()
	records, err := article.Parse(data)
	if err != nil {
		return 0, c.fail(operation{name: "import"}, start, err)
	}

	c.mu.Lock()
	seen := make(map[string]struct{}, c.coll.Len()+len(records))
	for _, r := range c.coll.Records() {
		seen[article.Fingerprint(r.Title, r.Image)] = struct{}{}
	}
	added := 0
	for _, r := range records {
		fp := article.Fingerprint(r.Title, r.Image)
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		c.assigner.Assign(&r, false)
		c.coll.Append(r)
		added++
	}
	c.setLocked(StateEditing, fmt.Sprintf("Imported %d of %d articles", added, len(records)), nil)
	c.mu.Unlock()

	c.done(operation{name: "import"}, start)
	return added, nil
}

// UploadImage transcodes and stores an image for the article titled title,
// or for the selected article when title is blank.
func (c *Controller) UploadImage(ctx context.Context, title, name string, data []byte) (*images.Result, error) {
	start := time.Now()
	if c.uploader == nil {
		return nil, errors.New("image uploads are not configured")
	}
	if strings.TrimSpace(title) == "" {
		a, _, err := c.Selected()
		if err != nil {
			return nil, c.fail(operation{name: "upload_image"}, start, err)
		}
		title = a.Title
	}
	op := c.begin("upload_image", "", "Uploading "+name, slog.String("name", name))
	res, err := c.uploader.Upload(ctx, title, name, data)
	if err != nil {
		return nil, c.fail(op, start, err)
	}
	msg := "Uploaded " + res.Path
	if res.Skipped {
		msg = "Image already stored at " + res.Path
	}
	c.mu.Lock()
	c.setLocked(c.settledLocked(), msg, nil)
	c.mu.Unlock()
	c.done(op, start)
	return res, nil
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) localSaveLocked(form Form) error {
	_, idx, err := c.coll.Selected()
	if err != nil {
		return err
	}
	body := form.HTMLContent
	if c.richText != nil && c.richText.Ready() {
		body = c.richText.Content()
	}
	return c.coll.Update(idx, func(a *models.Article) {
		if t := strings.TrimSpace(form.Title); t != "" {
			a.Title = t
		}
		a.DescriptionFull = form.DescriptionFull
		a.Image = strings.TrimSpace(form.Image)
		a.Categories = article.SplitList(form.Categories, ",")
		a.Time = strings.TrimSpace(form.Time)
		a.YouTubeURL = strings.TrimSpace(form.YouTubeURL)
		a.HTMLContent = body
		a.OtherImages = article.SplitList(form.OtherImages, "\n")
		c.assigner.Assign(a, true)
	})
}

// showLocked pushes the selected record's body into the widget when it is
// ready and returns the record.
func (c *Controller) showLocked() models.Article {
	a, _, err := c.coll.Selected()
	if err != nil {
		return models.Article{}
	}
	if c.richText != nil && c.richText.Ready() {
		c.richText.SetContent(a.HTMLContent)
	}
	return a
}

func (c *Controller) target(p, branch string) (string, string) {
	if p == "" {
		p = c.cfg.Path
	}
	if p == "" {
		p = article.DailyPath(c.cfg.DailyBase, c.now(), c.cfg.Location)
	}
	if branch == "" {
		branch = c.cfg.Branch
	}
	return strings.TrimPrefix(p, "/"), branch
}

func (c *Controller) commitMessage(p string) string {
	if c.cfg.CommitMessage != "" {
		return c.cfg.CommitMessage
	}
	return "Update " + p
}

func (c *Controller) snapshotOf(p, branch, version string, data []byte) *Snapshot {
	at := c.now()
	return &Snapshot{
		Name:    fmt.Sprintf("%s-%s", at.UTC().Format("20060102-150405"), path.Base(p)),
		Path:    p,
		Branch:  branch,
		Version: version,
		TakenAt: at,
		Data:    append([]byte{}, data...),
	}
}

type operation struct {
	name string
	id   string
}

func (c *Controller) begin(name string, state State, msg string, attrs ...any) operation {
	op := operation{name: name, id: uuid.NewString()}
	c.mu.Lock()
	if state == "" {
		state = c.settledLocked()
	}
	c.setLocked(state, msg, nil)
	c.mu.Unlock()
	c.logger.Info("editor: "+name+" started", append([]any{slog.String("op_id", op.id)}, attrs...)...)
	return op
}

func (c *Controller) done(op operation, start time.Time) {
	took := time.Since(start)
	if op.id != "" {
		c.logger.Info("editor: "+op.name+" finished", slog.String("op_id", op.id), slog.Duration("took", took))
	}
	if c.observer != nil {
		c.observer.ObserveOperation(op.name, "ok", took)
		c.observer.SetCollectionSize(c.Status().Count)
	}
}

// fail records err as the operator-visible status and returns it.
func (c *Controller) fail(op operation, start time.Time, err error) error {
	c.mu.Lock()
	c.setLocked(StateError, apperr.Message(err), err)
	c.mu.Unlock()
	c.logger.Warn("editor: "+op.name+" failed",
		slog.String("op_id", op.id),
		slog.String("code", apperr.Code(err)),
		slog.String("error", err.Error()))
	if c.observer != nil {
		c.observer.ObserveOperation(op.name, apperr.Code(err), time.Since(start))
	}
	return err
}

// settledLocked is the state to rest in when no operation is running.
func (c *Controller) settledLocked() State {
	if c.loaded || c.coll.Len() > 0 {
		return StateLoaded
	}
	return StateIdle
}

func (c *Controller) setLocked(state State, msg string, err error) {
	c.state = state
	if msg != "" || err != nil {
		c.message = msg
	}
	c.code = apperr.Code(err)
	if c.notify != nil {
		c.notify(c.statusLocked())
	}
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:    c.state,
		Message:  c.message,
		Code:     c.code,
		Path:     c.path,
		Branch:   c.branch,
		Version:  c.token,
		Count:    c.coll.Len(),
		Selected: c.coll.SelectedIndex(),
	}
}
