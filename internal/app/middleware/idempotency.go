package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"rentals/internal/app/commands"
	"rentals/internal/domain/shared/errs"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

// ActorScopedCommand narrows an idempotency key to the caller that issued it,
// so two callers sending the same header value never share a record.
type ActorScopedCommand interface {
	IdempotencyScope() string
}

// ErrIdempotencyKeyReused is returned when a key is replayed with a different request body.
var ErrIdempotencyKeyReused = errs.Conflict("middleware: idempotency key was already used for a different request")

type IdempotencyRecord struct {
	Key         string    `json:"key"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Payload     []byte    `json:"payload,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the stored outcome of a command key. Keys are scoped by
// command name and, when the command names one, by actor. A replay whose body
// differs from the recorded one fails with ErrIdempotencyKeyReused.
func Idempotency(store IdempotencyStore, codec ResultCodec) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := idempotencyKey(idCmd)
			fingerprint, err := fingerprintOf(cmd)
			if err != nil {
				return nil, err
			}
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
					return nil, ErrIdempotencyKeyReused
				}
				return replay(rec, idCmd, codec)
			}
			result, err := nextFn(ctx, cmd)
			record := IdempotencyRecord{
				Key:         key,
				Fingerprint: fingerprint,
				OccurredAt:  time.Now().UTC(),
			}
			if err != nil {
				kind, tagged := errs.KindOf(err)
				if !tagged {
					// only domain outcomes are replayed
					return nil, err
				}
				record.Error = err.Error()
				record.ErrorKind = string(kind)
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, saveErr
			}
			return result, nil
		})
	}
}

func idempotencyKey(cmd IdempotentCommand) string {
	key := cmd.Key() + ":"
	if scoped, ok := cmd.(ActorScopedCommand); ok {
		key += scoped.IdempotencyScope() + ":"
	}
	return key + cmd.IdempotencyKey()
}

// fingerprintOf hashes the command's JSON form.
func fingerprintOf(cmd commands.Command) (string, error) {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Error != "" {
		return nil, errs.New(errs.Kind(rec.ErrorKind), rec.Error)
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

// normalizePrototype turns *T back into T when the handler returns values.
func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return proto
}
