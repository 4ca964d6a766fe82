package history

import "github.com/keetahub/keeta-history-indexer/internal/models"

// Candidate is one raw operation paired with the record it was found in.
// The record supplies fallback fields (block hash, dates) the operation
// itself may lack.
type Candidate struct {
	Op     models.RawRecord
	Record models.RawRecord
}

// ExtractOptions controls which parts of a record are mined for candidates.
type ExtractOptions struct {
	// IncludeStaples mines voteStaple.operations and the per-block
	// operations of voteStaple.blocks[]. Off, only record.operations
	// (or the record itself) contribute.
	IncludeStaples bool
}

// ExtractCandidates pulls operation candidates out of nested page records.
// Per record the candidate list is record.operations, then
// voteStaple.operations, then the flattened operations of
// voteStaple.blocks[]. A record yielding nothing is treated as a single
// flat candidate itself; some providers return operation-like records with
// no nesting at all. Input order is preserved: it decides which duplicate
// wins at the dedupe stage, not display order.
func ExtractCandidates(records []models.RawRecord, opts ExtractOptions) []Candidate {
	var out []Candidate

	for _, record := range records {
		if record == nil {
			continue
		}

		n := len(out)
		out = appendOps(out, record["operations"], record)

		if opts.IncludeStaples {
			if staple, ok := record["voteStaple"].(map[string]any); ok {
				out = appendOps(out, staple["operations"], record)
				if blocks, ok := staple["blocks"].([]any); ok {
					for _, b := range blocks {
						if block, ok := b.(map[string]any); ok {
							out = appendOps(out, block["operations"], record)
						}
					}
				}
			}
		}

		if len(out) == n {
			out = append(out, Candidate{Op: record, Record: record})
		}
	}

	return out
}

func appendOps(dst []Candidate, v any, record models.RawRecord) []Candidate {
	ops, ok := v.([]any)
	if !ok {
		return dst
	}
	for _, o := range ops {
		if op, ok := o.(map[string]any); ok {
			dst = append(dst, Candidate{Op: op, Record: record})
		}
	}
	return dst
}
