// Package contract exposes named operations over a kvdoc database: point
// lookups, selector queries and key histories, plus the record handlers that
// create and modify entities and their entries.
//
// Each invocation takes a single JSON argument blob, runs in exactly one
// transaction and returns a byte payload.
package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreyvit/kvdoc"
)

const tracerName = "github.com/andreyvit/kvdoc/contract"

// Invocation is the context a handler runs in.
type Invocation struct {
	Op     string
	Args   json.RawMessage
	Tx     *kvdoc.Tx
	Logger *zap.Logger
}

// DecodeArgs unmarshals the argument blob into v. Numbers are kept as
// json.Number when v holds interface values.
func (inv *Invocation) DecodeArgs(v any) error {
	if len(inv.Args) == 0 {
		return nil
	}
	if err := kvdoc.UnmarshalJSON(inv.Args, v); err != nil {
		return &ValidationError{Op: inv.Op, Err: err}
	}
	return nil
}

type Handler interface {
	Invoke(ctx context.Context, inv *Invocation) ([]byte, error)
}

type HandlerFunc func(ctx context.Context, inv *Invocation) ([]byte, error)

func (f HandlerFunc) Invoke(ctx context.Context, inv *Invocation) ([]byte, error) {
	return f(ctx, inv)
}

// Operation describes a named operation.
type Operation struct {
	Name string

	// Writable operations run in a write transaction, which is committed
	// when the handler succeeds.
	Writable bool

	// Schema is a JSON Schema for the argument blob.
	Schema string

	Handler Handler
}

type registeredOp struct {
	Operation
	schema *jsonschema.Schema
}

type Options struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
}

// Registry dispatches invocations to registered operations by name.
type Registry struct {
	db     *kvdoc.DB
	logger *zap.Logger
	tracer trace.Tracer
	ops    map[string]*registeredOp
}

func NewRegistry(db *kvdoc.DB, opt Options) *Registry {
	if opt.Logger == nil {
		opt.Logger = zap.L()
	}
	if opt.TracerProvider == nil {
		opt.TracerProvider = otel.GetTracerProvider()
	}
	return &Registry{
		db:     db,
		logger: opt.Logger,
		tracer: opt.TracerProvider.Tracer(tracerName),
		ops:    make(map[string]*registeredOp),
	}
}

func (r *Registry) Register(op Operation) error {
	if op.Name == "" || op.Handler == nil {
		return fmt.Errorf("contract: operation needs a name and a handler")
	}
	if _, found := r.ops[op.Name]; found {
		return fmt.Errorf("contract: %w %q", ErrDuplicateOperation, op.Name)
	}
	sch, err := compileSchema(op.Name, op.Schema)
	if err != nil {
		return fmt.Errorf("contract: %w", err)
	}
	r.ops[op.Name] = &registeredOp{Operation: op, schema: sch}
	return nil
}

func (r *Registry) MustRegister(ops ...Operation) {
	for _, op := range ops {
		if err := r.Register(op); err != nil {
			panic(err)
		}
	}
}

// Operations returns the registered operation names, sorted.
func (r *Registry) Operations() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke runs the named operation with args in a single transaction.
func (r *Registry) Invoke(ctx context.Context, name string, args []byte) (payload []byte, err error) {
	logger := r.logger.With(zap.String("operation", name))
	logger.Debug("start", zap.ByteString("args", args))

	ctx, span := r.tracer.Start(ctx, "kvdoc."+name, trace.WithAttributes(attribute.String("kvdoc.operation", name)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("kvdoc.payload_size", len(payload)))
		}
		span.End()
		logger.Debug("return", zap.Int("payload_size", len(payload)), zap.Error(err))
	}()

	op := r.ops[name]
	if op == nil {
		return nil, &UnknownOperationError{Op: name}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateArgs(name, op.schema, args); err != nil {
		return nil, err
	}

	var changes []kvdoc.Change
	err = r.db.Tx(op.Writable, func(tx *kvdoc.Tx) error {
		tx.OnChange(func(chg kvdoc.Change) {
			changes = append(changes, chg)
		})
		if op.Writable {
			span.SetAttributes(attribute.String("kvdoc.tx", tx.ID()))
		}
		var err error
		payload, err = op.Handler.Invoke(ctx, &Invocation{
			Op:     name,
			Args:   args,
			Tx:     tx,
			Logger: logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, chg := range changes {
		logger.Info("committed", zap.Stringer("op", chg.Op), zap.String("key", chg.Key), zap.String("tx", chg.TxID))
	}
	return payload, nil
}
