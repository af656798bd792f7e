package command

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/codefionn/bookshelf/internal/catalog"
	"github.com/codefionn/bookshelf/internal/logger"
	"github.com/codefionn/bookshelf/internal/metrics"
	"github.com/codefionn/bookshelf/internal/session"
	"github.com/codefionn/bookshelf/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/codefionn/bookshelf/internal/command"

// Response texts shared by several handlers.
const (
	msgUnknownCommand = "Unknown command"
	msgNotLoggedIn    = "You aren't logged in the system"
	msgNoSelection    = "You haven't selected a book, select a book by first searching the Book Repository"
	usageFormat       = `Invalid count of arguments: "%s" expects %d arguments. Example: "%s"`
)

// handlerFunc runs one verb. args has already been checked against the
// handler's arity.
type handlerFunc func(ctx context.Context, args []string, s *session.Session) string

type handler struct {
	args  int
	usage string
	fn    handlerFunc
}

// Dispatcher routes parsed commands to their handlers.
type Dispatcher struct {
	store    *store.Store
	catalog  catalog.Catalog
	handlers map[string]handler

	metrics *metrics.Metrics
	tracer  trace.Tracer
	log     *logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records per-verb counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithLogger replaces the "command" logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// NewDispatcher binds the handlers to st and cat.
func NewDispatcher(st *store.Store, cat catalog.Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   st,
		catalog: cat,
		tracer:  otel.Tracer(tracerName),
		log:     logger.Global().WithPrefix("command"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = d.buildHandlers()
	return d
}

func (d *Dispatcher) buildHandlers() map[string]handler {
	help := handler{0, "help", d.help}
	return map[string]handler{
		"register": {2, "register <username> <password>", d.register},
		"login":    {2, "login <username> <password>", d.login},
		"logout":   {0, "logout", d.logout},

		"search-title":        {1, `search-title "<book-title>"`, d.searchTitle},
		"search-author":       {1, `search-author "<book-author>"`, d.searchAuthor},
		"search-title-author": {2, `search-title-author "<book-title>" "<book-author>"`, d.searchTitleAuthor},
		"next-page":           {0, "next-page", d.nextPage},
		"prev-page":           {0, "prev-page", d.prevPage},
		"select":              {1, "select <book number from list>", d.selectBook},
		"deselect":            {0, "deselect", d.deselect},

		"add-book":    {1, "add-book <list-name>", d.addBook},
		"create-list": {1, "create-list <list-name>", d.createList},
		"remove-list": {1, "remove-list <list-name>", d.removeList},
		"view-list":   {1, "view-list <list-name>", d.viewList},
		"remove-book": {2, "remove-book <list-name> <book index in list>", d.removeBook},

		"add-friend":               {1, "add-friend <friend-username>", d.addFriend},
		"recommend-book":           {0, "recommend-book", d.recommendBook},
		"view-user-recommended":    {0, "view-user-recommended", d.viewUserRecommended},
		"view-friends-recommended": {0, "view-friends-recommended", d.viewFriendsRecommended},

		"help": help,
		"menu": help,
	}
}

// Verbs returns every known verb, sorted.
func (d *Dispatcher) Verbs() []string {
	verbs := make([]string, 0, len(d.handlers))
	for v := range d.handlers {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	return verbs
}

// Dispatch parses line and executes it.
func (d *Dispatcher) Dispatch(ctx context.Context, line string, s *session.Session) string {
	return d.Execute(ctx, Parse(line), s)
}

// Execute runs cmd for session s and returns the response text.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command, s *session.Session) string {
	h, ok := d.handlers[cmd.Verb]
	if !ok {
		d.metrics.ObserveCommand("unknown", 0)
		return msgUnknownCommand
	}

	ctx, span := d.tracer.Start(ctx, "command."+cmd.Verb,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("bookshelf.verb", cmd.Verb),
			attribute.Int("bookshelf.args", len(cmd.Args)),
			attribute.String("bookshelf.session", s.ID()),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		d.metrics.ObserveCommand(cmd.Verb, time.Since(start))
	}()

	if len(cmd.Args) != h.args {
		return fmt.Sprintf(usageFormat, usageVerb(cmd.Verb), h.args, h.usage)
	}

	d.log.Debug("%s: %s (%d args)", s.ID(), cmd.Verb, len(cmd.Args))
	return h.fn(ctx, cmd.Args, s)
}

// usageVerb names the verb in usage messages; menu is reported as help.
func usageVerb(verb string) string {
	if verb == "menu" {
		return "help"
	}
	return verb
}

// storeFailure logs a rejected store operation and returns its client text.
// Missing lists, users and indexes are routine typos; anything else is worth
// an info line.
func (d *Dispatcher) storeFailure(s *session.Session, verb string, err error) string {
	if store.IsNotFound(err) {
		d.log.Debug("%s: %s: %v", s.ID(), verb, err)
	} else {
		d.log.Info("%s: %s rejected: %v", s.ID(), verb, err)
	}
	return err.Error()
}
