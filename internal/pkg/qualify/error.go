package qualify

import "errors"

var (
	// ErrEmptyLexicon is returned when a lexicon has no domain or intent
	// terms. The pipeline cannot score anything without them, so this is
	// fatal at startup.
	ErrEmptyLexicon = errors.New("lexicon has no domain or intent terms")
	// ErrBadPattern is returned when an intent pattern does not compile
	ErrBadPattern = errors.New("intent pattern does not compile")
)
