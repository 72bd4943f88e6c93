package bridge

import (
	"context"
	"errors"

	"github.com/membo-ai/studykit/errcode"
	"github.com/membo-ai/studykit/statstore"
	"github.com/membo-ai/studykit/study"
	"github.com/membo-ai/studykit/stt"
	"github.com/membo-ai/studykit/voice"
)

var (
	errUnknownMethod      = errors.New("bridge: unknown method")
	errMalformedParams    = errors.New("bridge: malformed params")
	errInvalidParams      = errors.New("bridge: invalid params")
	errVoiceNotConfigured = errors.New("bridge: no voice engine configured")
	errStoreNotConfigured = errors.New("bridge: no statistics store configured")
)

// codeTable maps engine sentinels onto the outward taxonomy. First
// match wins; anything unmatched falls through to errcode.FromError.
var codeTable = []struct {
	err  error
	code errcode.Code
}{
	{errUnknownMethod, errcode.CodeBadRequest},
	{errMalformedParams, errcode.CodeValidation},
	{errInvalidParams, errcode.CodeValidation},
	{errVoiceNotConfigured, errcode.CodeUnavailable},
	{errStoreNotConfigured, errcode.CodeUnavailable},

	{study.ErrInvalidMode, errcode.CodeValidation},
	{study.ErrInvalidResponse, errcode.CodeValidation},
	{study.ErrInvalidConfig, errcode.CodeValidation},
	{study.ErrSessionAlreadyActive, errcode.CodeBadRequest},
	{study.ErrNoActiveSession, errcode.CodeBadRequest},
	{study.ErrNotEnoughCards, errcode.CodeBadRequest},
	{study.ErrVoiceUnavailable, errcode.CodeUnavailable},

	{voice.ErrNoPermission, errcode.CodeForbidden},
	{voice.ErrAlreadyInProgress, errcode.CodeBadRequest},
	{voice.ErrInvalidConfiguration, errcode.CodeValidation},
	{voice.ErrTimeout, errcode.CodeTimeout},
	{voice.ErrCancelled, errcode.CodeBadRequest},
	{voice.ErrRecognizerUnavailable, errcode.CodeUnavailable},
	{voice.ErrAudioSession, errcode.CodeInternal},
	{voice.ErrNoMatch, errcode.CodeNotFound},

	{stt.ErrRateLimited, errcode.CodeRateLimit},
	{stt.ErrNoSpeech, errcode.CodeNotFound},

	{statstore.ErrNotFound, errcode.CodeNotFound},
	{statstore.ErrInvalidID, errcode.CodeValidation},

	{context.DeadlineExceeded, errcode.CodeTimeout},
}

// codeFor maps an engine error onto the outward code set.
func codeFor(err error) errcode.Code {
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	var te *stt.TranscriptionError
	if errors.As(err, &te) {
		return errcode.CodeNetwork
	}
	return errcode.FromError(err)
}
