package compaction

import (
	"regexp"
	"slices"

	"contextkeeper/internal/editlog"
	"contextkeeper/internal/message"
)

// Tool results and mentions are shaped as a marker block followed by a
// body block. Only the body block is ever rewritten.
const (
	MarkerBlockIndex = 0
	BodyBlockIndex   = 1
)

var (
	toolResultPattern   = regexp.MustCompile(`^\[(\S+) for '([^']+)'\] Result:$`)
	finalContentPattern = regexp.MustCompile(`(<final_file_content path="[^"]*">)[\s\S]*?(</final_file_content>)`)
	mentionPattern      = regexp.MustCompile(`<file_content path="([^"]*)">[\s\S]*?</file_content>`)
)

// OptimizeResult reports what one optimizer pass did.
type OptimizeResult struct {
	Changed bool
	// Touched holds the message indices that received an update this pass.
	Touched map[int]bool
}

// Optimizer replaces every copy of a file's content except the most recent
// one with DuplicateFileNotice.
type Optimizer struct {
	readTools  []string
	writeTools []string
}

// NewOptimizer creates an Optimizer recognising the tools named in cfg.
func NewOptimizer(cfg Config) *Optimizer {
	return &Optimizer{
		readTools:  slices.Clone(cfg.ReadTools),
		writeTools: slices.Clone(cfg.WriteTools),
	}
}

// occurrence is one copy of a file's content.
type occurrence struct {
	msg  int
	kind editlog.EditKind
	// text is the replacement body for read and write results. Mentions
	// are rewritten per message after all paths are known.
	text string
}

// mentionState tracks one message in the inline-mention channel.
type mentionState struct {
	base       string
	replaced   []string
	referenced []string
	pending    []string
}

// Optimize scans messages from start onward and appends updates at
// timestamp to log for every duplicated file content. The chronologically
// last copy of each path is never replaced.
func (o *Optimizer) Optimize(messages []message.Message, log *editlog.Log, start int, timestamp int64) (OptimizeResult, error) {
	result := OptimizeResult{Touched: make(map[int]bool)}

	byPath := make(map[string][]occurrence)
	var paths []string
	record := func(path string, occ occurrence) {
		if _, ok := byPath[path]; !ok {
			paths = append(paths, path)
		}
		byPath[path] = append(byPath[path], occ)
	}
	mentions := make(map[int]*mentionState)

	for i := max(start, 0); i < len(messages); i++ {
		msg := messages[i]
		if msg.Role != message.RoleUser {
			continue
		}
		marker, ok := msg.Text(MarkerBlockIndex)
		if !ok {
			continue
		}
		body, ok := msg.Text(BodyBlockIndex)
		if !ok {
			continue
		}

		var alreadyReplaced []string
		inProgress := log.HasMessage(i)
		if inProgress {
			latest, ok := log.Latest(editlog.Key{Message: i, Block: BodyBlockIndex})
			if !ok || latest.Metadata.IsZero() || latest.Metadata.Complete() {
				continue
			}
			alreadyReplaced = latest.Metadata.Replaced
		}

		if !inProgress {
			if m := toolResultPattern.FindStringSubmatch(marker); m != nil {
				tool, path := m[1], m[2]
				switch {
				case slices.Contains(o.readTools, tool):
					record(path, occurrence{msg: i, kind: editlog.EditReadTool, text: DuplicateFileNotice})
					continue
				case slices.Contains(o.writeTools, tool):
					if loc := finalContentPattern.FindStringSubmatchIndex(body); loc != nil {
						replaced := body[:loc[3]] + " " + DuplicateFileNotice + " " + body[loc[4]:]
						record(path, occurrence{msg: i, kind: editlog.EditWriteTool, text: replaced})
						continue
					}
				}
			}
		}

		referenced := mentionedPaths(body)
		if len(referenced) == 0 {
			continue
		}
		state := &mentionState{
			base:       body,
			replaced:   slices.Clone(alreadyReplaced),
			referenced: referenced,
		}
		if latest, ok := log.Latest(editlog.Key{Message: i, Block: BodyBlockIndex}); ok {
			state.base = latest.Text
		}
		mentions[i] = state
		for _, path := range referenced {
			if !slices.Contains(state.replaced, path) {
				record(path, occurrence{msg: i, kind: editlog.EditFileMention})
			}
		}
	}

	for _, path := range paths {
		occs := byPath[path]
		for _, occ := range occs[:len(occs)-1] {
			if occ.kind == editlog.EditFileMention {
				mentions[occ.msg].pending = append(mentions[occ.msg].pending, path)
				continue
			}
			key := editlog.Key{Message: occ.msg, Block: BodyBlockIndex}
			if err := log.Append(key, editlog.Update{Timestamp: timestamp, Text: occ.text}); err != nil {
				return finish(result), wrapError("Optimize", err)
			}
			log.SetKind(occ.msg, occ.kind)
			result.Touched[occ.msg] = true
		}
	}

	for _, msg := range sortedKeys(mentions) {
		state := mentions[msg]
		if len(state.pending) == 0 {
			continue
		}
		text := state.base
		for _, path := range state.pending {
			text = replaceMention(text, path)
			state.replaced = append(state.replaced, path)
		}
		update := editlog.Update{
			Timestamp: timestamp,
			Text:      text,
			Metadata:  editlog.Metadata{Replaced: state.replaced, Referenced: state.referenced},
		}
		if err := log.Append(editlog.Key{Message: msg, Block: BodyBlockIndex}, update); err != nil {
			return finish(result), wrapError("Optimize", err)
		}
		log.SetKind(msg, editlog.EditFileMention)
		result.Touched[msg] = true
	}

	return finish(result), nil
}

func finish(r OptimizeResult) OptimizeResult {
	r.Changed = len(r.Touched) > 0
	return r
}

// mentionedPaths returns the distinct paths of the file_content tags in
// text, in order of first appearance.
func mentionedPaths(text string) []string {
	var paths []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(paths, m[1]) {
			paths = append(paths, m[1])
		}
	}
	return paths
}

// replaceMention swaps the body of every file_content tag for path.
func replaceMention(text, path string) string {
	tag := regexp.MustCompile(`<file_content path="` + regexp.QuoteMeta(path) + `">[\s\S]*?</file_content>`)
	return tag.ReplaceAllLiteralString(text, `<file_content path="`+path+`">`+DuplicateFileNotice+`</file_content>`)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
