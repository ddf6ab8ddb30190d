// Package engine provides the Kernel, the single entry point that wires
// validation, dispatch, the session authority and the story narrator
// together.
package engine

import (
	"context"
	"errors"
	"sync"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nathoo/qicore/cache"
	"github.com/nathoo/qicore/engine/authority"
	"github.com/nathoo/qicore/engine/dispatch"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/handlers"
	"github.com/nathoo/qicore/engine/save"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/engine/story"
	"github.com/nathoo/qicore/store"
	"github.com/nathoo/qicore/types"
)

// Options configures a Kernel. The zero value is usable.
type Options struct {
	Logger           logrus.FieldLogger
	Seed             int64
	FlushParallelism int
	// Generator produces story beats. Defaults to a template generator
	// over the content pack's scenes.
	Generator story.Generator
	// TemplateCache is shared by the default generator.
	TemplateCache *cache.LRU[string, *template.Template]
	// Now stamps visual commands and snapshots. Defaults to time.Now.
	Now func() time.Time
}

// Kernel processes events for any number of sessions.
type Kernel struct {
	Defs *state.Defs

	repo       store.Repository
	auth       *authority.Authority
	validator  *events.Validator
	dispatcher *dispatch.Dispatcher
	narrator   *story.Narrator
	log        logrus.FieldLogger
	now        func() time.Time

	mu       sync.Mutex
	commands map[string][]string
}

// New builds a kernel over repo and the given content.
func New(repo store.Repository, defs *state.Defs, opts Options) *Kernel {
	if defs == nil {
		defs = state.NewDefs()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Generator == nil {
		opts.Generator = story.NewTemplateGenerator(defs.Scenes, opts.TemplateCache)
	}

	auth := authority.New(repo, authority.Options{
		Logger:           opts.Logger,
		Seed:             opts.Seed,
		FlushParallelism: opts.FlushParallelism,
	})
	env := handlers.NewEnv(auth, defs)
	env.Now = opts.Now

	k := &Kernel{
		Defs:       defs,
		repo:       repo,
		auth:       auth,
		validator:  events.NewValidator(events.Default()),
		dispatcher: dispatch.New(env, dispatch.WithLogger(opts.Logger)),
		log:        opts.Logger,
		now:        opts.Now,
		commands:   map[string][]string{},
	}
	k.narrator = story.NewNarrator(opts.Generator, defs, auth, k, opts.Logger)
	return k
}

// Authority exposes the session authority for direct state operations.
func (k *Kernel) Authority() *authority.Authority { return k.auth }

// Dispatcher exposes the dispatcher, for registering extra namespaces.
func (k *Kernel) Dispatcher() *dispatch.Dispatcher { return k.dispatcher }

// Load hydrates a session.
func (k *Kernel) Load(ctx context.Context, sessionID string) (types.SessionState, error) {
	return k.auth.Load(ctx, sessionID)
}

// Unload flushes and evicts a session and drops its story history.
func (k *Kernel) Unload(ctx context.Context, sessionID string) error {
	k.narrator.Forget(sessionID)
	k.mu.Lock()
	delete(k.commands, sessionID)
	k.mu.Unlock()
	return k.auth.Unload(ctx, sessionID)
}

// State returns a copy of a loaded session.
func (k *Kernel) State(sessionID string) (types.SessionState, error) {
	return k.auth.Get(sessionID)
}

// Step validates a raw wire event and processes it. sessionID, when set,
// overrides the event's own.
func (k *Kernel) Step(ctx context.Context, sessionID string, raw []byte) types.EventResult {
	ev, err := k.validator.Validate(raw)
	if err != nil {
		return rejected("", err)
	}
	return k.dispatcher.Process(ctx, ev, dispatch.Context{SessionID: sessionID})
}

// Submit validates an envelope and processes it.
func (k *Kernel) Submit(ctx context.Context, env events.Envelope) types.EventResult {
	ev, err := k.validator.ValidateEvent(env)
	if err != nil {
		return rejected(env.ID, err)
	}
	return k.dispatcher.Process(ctx, ev, dispatch.Context{})
}

// rejected is the result of an event that never reached a handler.
func rejected(eventID string, err error) types.EventResult {
	code := fault.CodeOf(err)
	if code == fault.CodeInternal {
		code = fault.CodeValidation
	}
	return types.EventResult{
		EventID:  eventID,
		Commands: []types.VisualCommand{},
		Error:    &types.ResultError{Code: string(code), Message: fault.Message(err)},
	}
}

// Narrate asks the story generator for the next beat of a session.
func (k *Kernel) Narrate(ctx context.Context, sessionID, prompt string) (story.Narration, error) {
	return k.narrator.Narrate(ctx, sessionID, prompt)
}

// History returns the story turns of a session.
func (k *Kernel) History(sessionID string) []story.Turn {
	return k.narrator.History(sessionID)
}

// Run flushes dirty sessions every interval until ctx is done.
func (k *Kernel) Run(ctx context.Context, interval time.Duration) error {
	return k.auth.Run(ctx, interval)
}

// Flush writes every dirty session.
func (k *Kernel) Flush(ctx context.Context) error {
	return k.auth.FlushDirty(ctx)
}

// Close flushes and unloads every session. The repository stays open.
func (k *Kernel) Close(ctx context.Context) error {
	return k.auth.Close(ctx)
}

// NewCharacter creates a character from a content template and imports the
// content's locations so it can be loaded. It fails if the repository
// cannot seed records.
func (k *Kernel) NewCharacter(ctx context.Context, id, templateID, name string) (types.Character, error) {
	const op = "engine.NewCharacter"
	seeder, ok := k.repo.(store.Seeder)
	if !ok {
		return types.Character{}, fault.New(fault.CodeInternal, op, "repository cannot create characters")
	}
	if id == "" {
		return types.Character{}, fault.New(fault.CodeValidation, op, "character id is required")
	}
	if err := k.ImportLocations(ctx); err != nil {
		return types.Character{}, err
	}
	ch, inv, techs := state.NewCharacter(k.Defs, templateID, id, name)
	if _, ok := k.Defs.Locations[ch.LocationID]; !ok {
		return types.Character{}, fault.New(fault.CodeValidation, op, "start location %q is not defined", ch.LocationID)
	}
	rec := store.Record{Character: ch, Inventory: inv, Techniques: techs}
	if err := seeder.CreateCharacter(ctx, rec); err != nil {
		return types.Character{}, fault.Wrap(fault.CodeStorageFailure, op, err, "create character %s", id)
	}
	k.log.WithFields(logrus.Fields{"character": id, "template": templateID}).Info("character created")
	return ch, nil
}

// ImportLocations copies the content pack's locations into storage.
func (k *Kernel) ImportLocations(ctx context.Context) error {
	const op = "engine.ImportLocations"
	seeder, ok := k.repo.(store.Seeder)
	if !ok {
		return fault.New(fault.CodeInternal, op, "repository cannot import locations")
	}
	locs := make([]types.Location, 0, len(k.Defs.Locations))
	for _, id := range state.LocationIDs(k.Defs) {
		locs = append(locs, k.Defs.Locations[id])
	}
	if err := seeder.ImportLocations(ctx, locs); err != nil {
		return fault.Wrap(fault.CodeStorageFailure, op, err, "import locations")
	}
	return nil
}

// Characters lists stored character ids.
func (k *Kernel) Characters(ctx context.Context) ([]string, error) {
	seeder, ok := k.repo.(store.Seeder)
	if !ok {
		return nil, errors.New("repository cannot list characters")
	}
	return seeder.CharacterIDs(ctx)
}

// Export serializes a loaded session with its command log.
func (k *Kernel) Export(sessionID string) ([]byte, error) {
	s, err := k.auth.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return save.Export(s, k.Defs, k.CommandLog(sessionID), k.now())
}

// Restore writes a snapshot back to storage. The session must not be
// loaded; load it afterwards to continue playing.
func (k *Kernel) Restore(ctx context.Context, data []byte) (string, error) {
	const op = "engine.Restore"
	snap, err := save.Import(data)
	if err != nil {
		return "", fault.Wrap(fault.CodeValidation, op, err, "read snapshot")
	}
	id := snap.Session.SessionID
	if k.auth.IsLoaded(id) {
		return "", fault.New(fault.CodeInvalidTransition, op, "session %s is loaded", id)
	}
	seeder, ok := k.repo.(store.Seeder)
	if !ok {
		return "", fault.New(fault.CodeInternal, op, "repository cannot create characters")
	}
	s := snap.Session
	if err := seeder.ImportLocations(ctx, []types.Location{s.Location}); err != nil {
		return "", fault.Wrap(fault.CodeStorageFailure, op, err, "restore location")
	}
	rec := store.Record{Character: s.Character, Inventory: s.Inventory, Techniques: s.Techniques}
	if err := seeder.CreateCharacter(ctx, rec); err != nil {
		return "", fault.Wrap(fault.CodeStorageFailure, op, err, "restore character")
	}
	if err := k.repo.SaveSessionTime(ctx, id, s.Time); err != nil {
		return "", fault.Wrap(fault.CodeStorageFailure, op, err, "restore time")
	}
	k.mu.Lock()
	k.commands[id] = append([]string(nil), snap.Commands...)
	k.mu.Unlock()
	return id, nil
}

// CommandLog returns the text commands a session has issued.
func (k *Kernel) CommandLog(sessionID string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.commands[sessionID]...)
}

func (k *Kernel) logCommand(sessionID, input string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.commands[sessionID] = append(k.commands[sessionID], input)
}
