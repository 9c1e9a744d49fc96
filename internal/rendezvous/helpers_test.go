package rendezvous

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddSideFirstJoin(t *testing.T) {
	sr, err := addSide("", "", "A")
	require.NoError(t, err)
	require.True(t, sr.changed)
	require.Equal(t, "A", sr.side1)
	require.Equal(t, "", sr.side2)
}

func TestAddSideSecondJoin(t *testing.T) {
	sr, err := addSide("A", "", "B")
	require.NoError(t, err)
	require.True(t, sr.changed)
	require.Equal(t, "A", sr.side1)
	require.Equal(t, "B", sr.side2)
}

func TestAddSideAlreadyPresentIsUnchanged(t *testing.T) {
	sr, err := addSide("A", "B", "A")
	require.NoError(t, err)
	require.Equal(t, unchanged, sr)
}

func TestAddSideThirdIsCrowded(t *testing.T) {
	_, err := addSide("A", "B", "C")
	require.ErrorIs(t, err, ErrCrowded)
}

func TestRemoveSideAbsentIsUnchanged(t *testing.T) {
	sr := removeSide("A", "B", "C")
	require.Equal(t, unchanged, sr)
}

func TestRemoveSideLeavesOneBehind(t *testing.T) {
	sr := removeSide("A", "B", "A")
	require.True(t, sr.changed)
	require.False(t, sr.empty)
	require.Equal(t, "B", sr.side1)
}

func TestRemoveSideLastEmpties(t *testing.T) {
	sr := removeSide("A", "", "A")
	require.True(t, sr.changed)
	require.True(t, sr.empty)
}

func TestGenerateMailboxIDShape(t *testing.T) {
	id, err := generateMailboxID()
	require.NoError(t, err)
	require.Len(t, id, 13)
	require.Equal(t, id, toLowerASCII(id))
	require.NotContains(t, id, "=")
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestBlurStarted(t *testing.T) {
	require.Equal(t, int64(1042), blurStarted(1042, 0))
	require.Equal(t, int64(1000), blurStarted(1042, 100))
	require.Equal(t, int64(1000), blurStarted(1000, 100))
}

func TestSummarizeMailboxResultPrecedence(t *testing.T) {
	base := mailboxSnapshot{started: 0, crowded: false}

	u := summarizeMailbox(base, 0, "", 40, false, 0)
	require.Equal(t, "quiet", u.result)

	u = summarizeMailbox(base, 1, "", 40, false, 0)
	require.Equal(t, "lonely", u.result)

	u = summarizeMailbox(base, 2, "", 40, false, 0)
	require.Equal(t, "happy", u.result)

	// scenario 5: moods scary then errory override happy to errory then scary
	row := mailboxSnapshot{started: 0, firstMood: "scary", crowded: false}
	u = summarizeMailbox(row, 2, "errory", 40, false, 0)
	require.Equal(t, "scary", u.result)

	// pruned overrides mood-based results
	u = summarizeMailbox(row, 2, "errory", 40, true, 0)
	require.Equal(t, "pruney", u.result)

	// crowded is the final override, even over pruned
	row.crowded = true
	u = summarizeMailbox(row, 2, "errory", 40, true, 0)
	require.Equal(t, "crowded", u.result)
}

func TestSummarizeMailboxWaitingTime(t *testing.T) {
	row := mailboxSnapshot{started: 1000, second: sql.NullInt64{Int64: 1010, Valid: true}}
	u := summarizeMailbox(row, 2, "happy", 1040, false, 0)
	require.True(t, u.waitingTime.Valid)
	require.Equal(t, int64(10), u.waitingTime.Int64)
	require.Equal(t, int64(40), u.totalTime)
	require.Equal(t, "happy", u.result)
}

func TestSummarizeNameplateLonelyVsHappy(t *testing.T) {
	lonely := nameplateSnapshot{started: 1000}
	u := summarizeNameplate(lonely, 1100, false, 0)
	require.Equal(t, "lonely", u.result)
	require.False(t, u.waitingTime.Valid)

	happy := nameplateSnapshot{started: 1000, second: sql.NullInt64{Int64: 1010, Valid: true}}
	u = summarizeNameplate(happy, 1100, false, 0)
	require.Equal(t, "happy", u.result)
	require.Equal(t, int64(10), u.waitingTime.Int64)
}

func TestSummarizeNameplatePrunedAndCrowdedOverride(t *testing.T) {
	row := nameplateSnapshot{started: 1000, second: sql.NullInt64{Int64: 1010, Valid: true}}
	u := summarizeNameplate(row, 1100, true, 0)
	require.Equal(t, "pruney", u.result)

	row.crowded = true
	u = summarizeNameplate(row, 1100, true, 0)
	require.Equal(t, "crowded", u.result)
}
