package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sahakari/sahakari-cbs/internal/shared"
)

func validInput() PostingInput {
	return PostingInput{
		TenantID:     "t1",
		BusinessDate: shared.BSDate("2082-04-01"),
		Memo:         "share deposit",
		CreatedBy:    "teller-1",
		Entries: []EntryInput{
			{AccountID: 1, Amount: 50000},
			{AccountID: 2, Amount: -50000},
		},
	}
}

func TestPostingInputValid(t *testing.T) {
	require.NoError(t, validInput().Validate())
}

func TestPostingInputRejectsUnbalanced(t *testing.T) {
	in := validInput()
	in.Entries[1].Amount = -49999
	require.ErrorIs(t, in.Validate(), ErrUnbalanced)
}

func TestPostingInputRejectsSingleEntry(t *testing.T) {
	in := validInput()
	in.Entries = in.Entries[:1]
	require.ErrorIs(t, in.Validate(), ErrTooFewEntries)
}

func TestPostingInputRejectsZeroAmount(t *testing.T) {
	in := validInput()
	in.Entries = append(in.Entries, EntryInput{AccountID: 3, Amount: 0})
	require.ErrorIs(t, in.Validate(), ErrZeroAmount)
}

func TestPostingInputRejectsBadDate(t *testing.T) {
	in := validInput()
	in.BusinessDate = "2082-4-1"
	require.ErrorIs(t, in.Validate(), shared.ErrInvalidDate)
}

func TestPostingInputAllowsMultiLeg(t *testing.T) {
	in := validInput()
	in.Entries = []EntryInput{
		{AccountID: 1, Amount: 100},
		{AccountID: 2, Amount: -90},
		{AccountID: 3, Amount: -10},
	}
	require.NoError(t, in.Validate())
}
