package archetype

import "errors"

// ErrInvalidDeck reports a deck that does not decode to DeckSize distinct hex codes.
var ErrInvalidDeck = errors.New("invalid deck")
