package kit

import (
	"errors"
	"fmt"
)

var errNoIdentity = errors.New("module definition has neither a name nor a config key")

func errAmbiguousSetup(identity string) error {
	return fmt.Errorf("module %q declares both a setup handler and a setup function", identity)
}

func errUnnamedHook(identity string) error {
	return fmt.Errorf("module %q binds a hook with an empty event name", identity)
}

func errEmptyHook(identity, event string) error {
	return fmt.Errorf("module %q binds hook %q with neither a handler name nor a function", identity, event)
}
