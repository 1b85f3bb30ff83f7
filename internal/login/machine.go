package login

import (
	"context"
	"errors"
	"io"
	"runtime/debug"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/routes"
)

var (
	errMissingUID      = errors.New("cannot find uid")
	errMissingAuthUser = errors.New("cannot find auth user")
)

// Capabilities are the asynchronous collaborator actions the flow invokes.
//
// LookupUser returns a nil user and a nil error when no record exists.
type Capabilities interface {
	SignIn(ctx context.Context) (*models.Identity, error)
	LookupUser(ctx context.Context, uid string) (*models.User, error)
	RegisterUser(ctx context.Context, identity *models.Identity, form models.SignupForm) (*models.User, error)
	CreateSession(ctx context.Context, idToken string) error
	FetchChannel(ctx context.Context, identity *models.Identity) (*models.Channel, error)
	UpdateChannel(ctx context.Context, identity *models.Identity, channel *models.Channel) (*models.Channel, error)
}

// Hooks receive the flow's side effects. Nil hooks are skipped.
//
// Hooks run in order on a goroutine owned by the [Machine]. They may call [Machine.Send] and
// [Machine.Snapshot] but must not call [Machine.Stop].
type Hooks struct {
	OnChange       func(Snapshot)
	PublishUser    func(*models.User)
	PublishChannel func(*models.Channel)
	Redirect       func(target string)
}

// Options configures a [Machine].
type Options struct {
	Clock      Clock           // defaults to [SystemClock]
	Logger     *log.Logger     // defaults to a discarding logger
	RedirectTo string          // destination passed to [Hooks.Redirect], sanitized with [routes.SafeRedirect]
	Context    context.Context // parent of every invoked action's context
}

// Machine runs the login flow: it applies [Transition] to delivered events one at a time and
// interprets the resulting effects.
//
// A machine owns a hook goroutine until [Machine.Stop] is called.
type Machine struct {
	caps       Capabilities
	hooks      Hooks
	clock      Clock
	logger     *log.Logger
	redirectTo string
	base       context.Context

	mu      sync.Mutex // serializes transitions
	gen     uint64
	cancel  context.CancelFunc
	timer   Timer
	stopped bool

	snapMu sync.RWMutex
	snap   Snapshot

	notes    *notifier
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a machine in the initial state and starts the goroutine that runs its hooks.
// Callers must call [Machine.Stop] to release that goroutine, even after [Machine.Done] closes.
func New(caps Capabilities, hooks Hooks, opts Options) *Machine {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	m := &Machine{
		caps:       caps,
		hooks:      hooks,
		clock:      opts.Clock,
		logger:     opts.Logger,
		redirectTo: routes.SafeRedirect(opts.RedirectTo),
		base:       opts.Context,
		snap:       Initial(),
		notes:      newNotifier(opts.Logger),
		done:       make(chan struct{}),
	}
	go m.notes.run()
	return m
}

// Snapshot returns the current state and context.
func (m *Machine) Snapshot() Snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snap
}

// Done is closed when the flow reaches [Authenticated] or the machine is stopped.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// RedirectTo returns the sanitized destination handed to [Hooks.Redirect].
func (m *Machine) RedirectTo() string {
	return m.redirectTo
}

// Send delivers a user event and reports whether the current state handled it.
//
// Settlement events are only accepted from the machine's own invocations; Send ignores them.
func (m *Machine) Send(e Event) bool {
	if _, ok := e.(settlement); ok {
		m.logger.Warn("ignoring settlement event sent from outside the machine", "event", e.Type())
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return false
	}
	return m.apply(e)
}

// Stop abandons the flow. In-flight actions are cancelled, pending timers are stopped, and any
// settlement arriving afterwards is ignored. Stop waits for queued hooks to finish.
func (m *Machine) Stop() {
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		m.gen++
		m.release()
	}
	m.mu.Unlock()

	m.closeDone()
	m.notes.close()
}

// settle delivers the outcome of the invocation or timer identified by token.
func (m *Machine) settle(token uint64, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || token != m.gen {
		m.logger.Debug("dropping stale settlement", "event", e.Type(), "token", token, "current", m.gen)
		return
	}
	m.apply(e)
}

// release cancels the in-flight action and pending timer. Callers hold m.mu.
func (m *Machine) release() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// apply runs one transition and interprets its effects. Callers hold m.mu.
func (m *Machine) apply(e Event) bool {
	prev := m.snap
	next, effects, handled := step(prev, e)
	if !handled {
		m.logger.Debug("event not handled", "state", prev.State, "event", e.Type())
		return false
	}

	m.logger.Debug("transition", "from", prev.State, "event", e.Type(), "to", next.State)

	m.release()
	m.gen++
	token := m.gen

	m.snapMu.Lock()
	m.snap = next
	m.snapMu.Unlock()

	var notes []func()
	if fn := m.hooks.OnChange; fn != nil {
		notes = append(notes, func() { fn(next) })
	}

	for _, eff := range effects {
		switch eff := eff.(type) {
		case Invoke:
			ctx, cancel := context.WithCancel(m.base)
			m.cancel = cancel
			go m.invoke(ctx, token, eff)
		case StartTimer:
			ev := eff.Event
			m.timer = m.clock.AfterFunc(eff.Delay, func() { m.settle(token, ev) })
		case PublishUser:
			if fn := m.hooks.PublishUser; fn != nil {
				notes = append(notes, func() { fn(eff.User) })
			}
		case PublishChannel:
			if fn := m.hooks.PublishChannel; fn != nil {
				notes = append(notes, func() { fn(eff.Channel) })
			}
		case Redirect:
			if fn := m.hooks.Redirect; fn != nil {
				target := m.redirectTo
				notes = append(notes, func() { fn(target) })
			}
		}
	}

	m.notes.push(notes...)

	if next.Done() {
		m.closeDone()
	}
	return true
}

func (m *Machine) closeDone() {
	m.doneOnce.Do(func() { close(m.done) })
}

// invoke runs a capability and settles its outcome. Panics are reported as failures.
func (m *Machine) invoke(ctx context.Context, token uint64, inv Invoke) {
	var ev Event
	func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("action panicked", "action", inv.Action, "panic", r)
				ev = ActionFailed{Action: inv.Action, Err: r}
			}
		}()
		ev = m.run(ctx, inv)
	}()
	m.settle(token, ev)
}

func (m *Machine) run(ctx context.Context, inv Invoke) Event {
	failed := func(err error) Event {
		return ActionFailed{Action: inv.Action, Err: err}
	}
	id := inv.Identity

	switch inv.Action {
	case ActionSignIn:
		identity, err := m.caps.SignIn(ctx)
		if err != nil {
			return failed(err)
		}
		return SignedIn{Identity: identity}

	case ActionLookupUser:
		if id == nil || id.UID == "" {
			return failed(errMissingUID)
		}
		user, err := m.caps.LookupUser(ctx, id.UID)
		if err != nil {
			return failed(err)
		}
		return UserChecked{User: user}

	case ActionFetchChannel:
		if id == nil || id.UID == "" {
			return failed(errMissingUID)
		}
		channel, err := m.caps.FetchChannel(ctx, id)
		if err != nil {
			return failed(err)
		}
		return ChannelFetched{Channel: channel}

	case ActionRegisterUser:
		if id == nil {
			return failed(errMissingAuthUser)
		}
		user, err := m.caps.RegisterUser(ctx, id, inv.Form)
		if err != nil {
			return failed(err)
		}
		return SignedUp{User: user}

	case ActionCreateSession:
		if id == nil {
			return failed(errMissingAuthUser)
		}
		if err := m.caps.CreateSession(ctx, id.IDToken); err != nil {
			return failed(err)
		}
		return SessionCreated{}

	case ActionUpdateChannel:
		if id == nil || id.UID == "" {
			return failed(errMissingUID)
		}
		channel, err := m.caps.UpdateChannel(ctx, id, inv.Channel)
		if err != nil {
			return failed(err)
		}
		return ChannelLinked{Channel: channel}
	}

	return failed(errors.New("unknown action " + string(inv.Action)))
}

// notifier runs queued callbacks in order on its own goroutine.
type notifier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	exited chan struct{}
	logger *log.Logger
}

func newNotifier(logger *log.Logger) *notifier {
	n := &notifier{exited: make(chan struct{}), logger: logger}
	n.cond = sync.NewCond(&n.mu)
	return n
}

func (n *notifier) push(fns ...func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || len(fns) == 0 {
		return
	}
	n.queue = append(n.queue, fns...)
	n.cond.Signal()
}

// close stops accepting callbacks and waits for the queue to drain.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.cond.Signal()
	n.mu.Unlock()
	<-n.exited
}

func (n *notifier) run() {
	defer close(n.exited)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		fn := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.call(fn)
	}
}

// call runs fn, logging a panic instead of letting it take down the process.
func (n *notifier) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("hook panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
