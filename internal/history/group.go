package history

import (
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/keetahub/keeta-history-indexer/internal/models"
)

// MultipleTokensName labels synthetic groups spanning more than one token.
const MultipleTokensName = "Multiple tokens"

type tokenNet struct {
	id        string
	ticker    string
	decimals  *int
	fieldType string
	net       *big.Int
}

// GroupOperations collapses legs sharing one block hash into a single
// display row. Single-leg groups pass through unchanged; multi-leg groups
// net per-token signed sums in raw integer units (SEND negative, RECEIVE
// positive, big.Int throughout; float math would lose precision on token
// amounts). The result is sorted descending by block date with blockHash
// lexical order as the deterministic tie-break.
func GroupOperations(ops []*models.NormalizedOperation) []models.GroupedOperation {
	var hashOrder []string
	byHash := make(map[string][]*models.NormalizedOperation)
	for _, op := range ops {
		if _, ok := byHash[op.BlockHash]; !ok {
			hashOrder = append(hashOrder, op.BlockHash)
		}
		byHash[op.BlockHash] = append(byHash[op.BlockHash], op)
	}

	out := make([]models.GroupedOperation, 0, len(hashOrder))
	for _, hash := range hashOrder {
		legs := byHash[hash]
		if len(legs) == 1 {
			out = append(out, models.GroupedOperation{NormalizedOperation: *legs[0], Legs: 1})
			continue
		}
		out = append(out, groupLegs(legs))
	}

	sortGrouped(out)
	return out
}

func groupLegs(legs []*models.NormalizedOperation) models.GroupedOperation {
	var tokenOrder []string
	nets := make(map[string]*tokenNet)

	for _, leg := range legs {
		id := tokenLookupID(leg)
		tn, ok := nets[id]
		if !ok {
			tn = &tokenNet{id: id, ticker: leg.TokenTicker, net: new(big.Int)}
			if leg.TokenMetadata != nil {
				tn.decimals = leg.TokenMetadata.Decimals
				tn.fieldType = leg.TokenMetadata.FieldType
			} else {
				tn.decimals = leg.TokenDecimals
			}
			nets[id] = tn
			tokenOrder = append(tokenOrder, id)
		}

		amt, ok := new(big.Int).SetString(strings.TrimSpace(leg.RawAmount), 10)
		if !ok {
			// non-integer raw amounts cannot be netted safely; skip the leg
			continue
		}
		if leg.Type == models.OpSend {
			tn.net.Sub(tn.net, amt)
		} else {
			tn.net.Add(tn.net, amt)
		}
	}

	// overall net decides the group's display direction
	total := new(big.Int)
	for _, id := range tokenOrder {
		total.Add(total, nets[id].net)
	}

	groupType := legs[0].Type
	switch total.Sign() {
	case -1:
		groupType = models.OpSend
	case 1:
		groupType = models.OpReceive
	}

	var parts []string
	for _, id := range tokenOrder {
		tn := nets[id]
		if tn.net.Sign() == 0 {
			continue
		}
		abs := new(big.Int).Abs(tn.net)
		display := abs.String()
		if tn.decimals != nil {
			fieldType := tn.fieldType
			if fieldType == "" {
				fieldType = models.FieldTypeDecimals
			}
			if formatted, ok := FormatAmount(abs.String(), *tn.decimals, fieldType); ok {
				display = formatted
			}
		}
		label := tn.ticker
		if label == "" {
			label = tn.id
		}
		if label != "" {
			display += " " + label
		}
		parts = append(parts, display)
	}

	group := models.GroupedOperation{
		NormalizedOperation: models.NormalizedOperation{
			Type:            groupType,
			BlockHash:       legs[0].BlockHash,
			BlockDate:       legs[0].BlockDate,
			DatePlaceholder: legs[0].DatePlaceholder,
			RawAmount:       new(big.Int).Abs(total).String(),
			FormattedAmount: strings.Join(parts, " + "),
		},
		Legs: len(legs),
	}

	// participants come from the first leg matching the winning direction
	for _, leg := range legs {
		if leg.Type == groupType {
			group.From = leg.From
			group.To = leg.To
			break
		}
	}
	if group.From == "" && group.To == "" {
		group.From = legs[0].From
		group.To = legs[0].To
	}

	if len(tokenOrder) > 1 {
		group.TokenMetadata = &models.TokenMetadata{Name: MultipleTokensName}
	} else {
		group.Token = legs[0].Token
		group.TokenTicker = legs[0].TokenTicker
		group.TokenDecimals = legs[0].TokenDecimals
		group.TokenMetadata = legs[0].TokenMetadata
	}

	return group
}

func sortGrouped(rows []models.GroupedOperation) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti := parseBlockDate(rows[i].BlockDate)
		tj := parseBlockDate(rows[j].BlockDate)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return rows[i].BlockHash < rows[j].BlockHash
	})
}

func parseBlockDate(s string) time.Time {
	if ts, ok := parseTimestamp(s); ok {
		return ts
	}
	return time.Time{}
}
