package motion

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/Seednode/partyclient/protocol"
)

var ErrNotMovementKey = errors.New("not a movement key")

var movementKeys = map[string]bool{"w": true, "a": true, "s": true, "d": true}

// Poster queues an outbound message. *bus.Bus satisfies it.
type Poster interface {
	Post(protocol.Outbound) error
}

// Keys tracks held movement keys so repeated key-down events are sent
// once and every held key can be released together.
type Keys struct {
	out Poster

	mu   sync.Mutex
	held map[string]bool
}

func NewKeys(out Poster) *Keys {
	return &Keys{
		out:  out,
		held: make(map[string]bool),
	}
}

func normalizeKey(key string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if !movementKeys[k] {
		return "", ErrNotMovementKey
	}
	return k, nil
}

func (k *Keys) Down(key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.held[key] {
		return nil
	}
	if err := k.out.Post(protocol.KeyDown(key)); err != nil {
		return err
	}
	k.held[key] = true

	return nil
}

func (k *Keys) Up(key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.held[key] {
		return nil
	}
	delete(k.held, key)

	return k.out.Post(protocol.KeyUp(key))
}

// ReleaseAll sends a key-up for every held key, as when input focus is
// lost.
func (k *Keys) ReleaseAll() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var errs []error
	for _, key := range k.heldLocked() {
		delete(k.held, key)
		errs = append(errs, k.out.Post(protocol.KeyUp(key)))
	}

	return errors.Join(errs...)
}

func (k *Keys) Held() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.heldLocked()
}

func (k *Keys) heldLocked() []string {
	keys := make([]string, 0, len(k.held))
	for key := range k.held {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
