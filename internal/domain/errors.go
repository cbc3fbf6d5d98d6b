package domain

import "errors"

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrJobTerminal         = errors.New("job already finished")
	ErrMatchNotFound       = errors.New("match not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrDuplicateMatch      = errors.New("match already ingested")
	ErrTeamConflict        = errors.New("player already assigned to another team")
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupExists         = errors.New("group name already taken")
	ErrIncompleteIngestion = errors.New("event batches still missing")
	ErrRosterMissing       = errors.New("match roster not registered")
)
