// Package importer turns a participant list (CSV with the columns name, address
// and amount) into the entries the grant trie is built from.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/keycodec"
	"github.com/jettonkit/airdrop/module/util"
)

const (
	ColumnName    = "name"
	ColumnAddress = "address"
	ColumnAmount  = "amount"
)

// DefaultClaimDuration is the length of the claim window if none is configured.
const DefaultClaimDuration = 30 * 24 * time.Hour

// Participant is a single row of the participant list.
type Participant struct {
	// Line is the 1-based line number of the row in the input.
	Line    int
	Name    string
	Address string
	Amount  string
}

// Window is the claim window shared by all grants of one airdrop.
type Window struct {
	StartFrom int64
	ExpireAt  int64
}

// NewWindow returns the window opening at `start` and lasting `duration`.
func NewWindow(start time.Time, duration time.Duration) (Window, error) {
	if duration <= 0 {
		return Window{}, fmt.Errorf("claim window duration must be positive, got %v", duration)
	}
	return Window{
		StartFrom: start.Unix(),
		ExpireAt:  start.Add(duration).Unix(),
	}, nil
}

// ReadParticipants reads all rows of the participant list. The first row must be
// a header naming at least the name, address and amount columns, in any order
// and case. All defective rows are reported together.
func ReadParticipants(r io.Reader) ([]Participant, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("participant list is empty, expected a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read header row: %w", err)
	}
	columns, err := columnIndices(header)
	if err != nil {
		return nil, err
	}

	var participants []Participant
	var errs *multierror.Error
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				errs = multierror.Append(errs, err)
				continue
			}
			return nil, fmt.Errorf("cannot read participant list: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) != len(header) {
			errs = multierror.Append(errs, fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(record)))
			continue
		}
		participants = append(participants, Participant{
			Line:    line,
			Name:    strings.TrimSpace(record[columns[ColumnName]]),
			Address: strings.TrimSpace(record[columns[ColumnAddress]]),
			Amount:  strings.TrimSpace(record[columns[ColumnAmount]]),
		})
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return participants, nil
}

func columnIndices(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, column := range header {
		column = strings.ToLower(strings.TrimSpace(column))
		if _, ok := columns[column]; ok {
			return nil, fmt.Errorf("header row names column %q twice", column)
		}
		columns[column] = i
	}
	for _, required := range []string{ColumnName, ColumnAddress, ColumnAmount} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("header row is missing the %q column", required)
		}
	}
	return columns, nil
}

// ToEntries encodes the participants' addresses with the given codec and their
// amounts, given in whole tokens, into the smallest unit. Every grant gets the
// same claim window. It returns the entries and the sum of all amounts.
//
// Invalid addresses, invalid amounts and repeated addresses are all reported
// together; no entries are returned in that case.
func ToEntries(
	participants []Participant,
	codec keycodec.Codec,
	window Window,
	decimals int,
	logger zerolog.Logger,
) ([]airdrop.Entry, *big.Int, error) {
	if window.ExpireAt <= window.StartFrom {
		return nil, nil, fmt.Errorf("claim window [%d, %d) is empty", window.StartFrom, window.ExpireAt)
	}
	if decimals < 0 || decimals > airdrop.MaxDecimals {
		return nil, nil, fmt.Errorf("number of decimals must be between 0 and %d, got %d", airdrop.MaxDecimals, decimals)
	}

	logProgress := util.LogProgress(logger, util.DefaultLogProgressConfig("encoding participants", len(participants)))

	entries := make([]airdrop.Entry, 0, len(participants))
	total := new(big.Int)
	seen := make(map[airdrop.Key]int, len(participants))
	var errs *multierror.Error
	for _, p := range participants {
		logProgress(1)

		key, err := codec.Encode(p.Address)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("line %d (%s): %w", p.Line, p.Name, err))
			continue
		}
		if first, ok := seen[key]; ok {
			errs = multierror.Append(errs, fmt.Errorf("line %d (%s): %w, first listed on line %d",
				p.Line, p.Name, airdrop.NewDuplicateKeyError(key), first))
			continue
		}
		seen[key] = p.Line

		amount, err := airdrop.ParseAmount(p.Amount, decimals)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("line %d (%s): %w", p.Line, p.Name, err))
			continue
		}

		entries = append(entries, airdrop.NewEntry(key, *airdrop.NewGrant(amount, window.StartFrom, window.ExpireAt)))
		total.Add(total, amount)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, nil, err
	}

	logger.Info().
		Int("participants", len(entries)).
		Str("total_supply", total.String()).
		Msg("participants encoded")
	return entries, total, nil
}
