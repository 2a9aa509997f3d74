package models

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint_UnmarshalJSON(t *testing.T) {
	var req AddCandidateRequest

	err := json.Unmarshal([]byte(`{"election_id": 3, "candidate_name": "Alice"}`), &req)
	require.NoError(t, err)
	require.Equal(t, "3", req.ElectionID.String())

	err = json.Unmarshal([]byte(`{"election_id": "18446744073709551617"}`), &req)
	require.NoError(t, err)
	require.Equal(t, "18446744073709551617", req.ElectionID.String())

	req = AddCandidateRequest{}
	err = json.Unmarshal([]byte(`{"election_id": null}`), &req)
	require.NoError(t, err)
	require.Nil(t, req.ElectionID)

	require.NoError(t, req.ElectionID.Err())

	for _, raw := range []string{`-1`, `1.5`, `"abc"`, `""`, `true`, `{}`} {
		req = AddCandidateRequest{}
		err = json.Unmarshal([]byte(`{"election_id": `+raw+`, "candidate_name": "Alice"}`), &req)
		require.NoError(t, err, raw)
		require.NotNil(t, req.ElectionID, raw)
		require.Error(t, req.ElectionID.Err(), raw)
		require.Equal(t, "Alice", req.CandidateName, raw)
	}

	// A later valid value clears an earlier rejection.
	u := new(Uint)
	require.NoError(t, u.UnmarshalJSON([]byte(`"x"`)))
	require.Error(t, u.Err())
	require.NoError(t, u.UnmarshalJSON([]byte(`7`)))
	require.NoError(t, u.Err())
	require.Equal(t, "7", u.String())

	var nilUint *Uint
	require.NoError(t, nilUint.Err())
}

func TestUint_Width(t *testing.T) {
	widest := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	u, err := ParseUint(widest.String())
	require.NoError(t, err)
	require.Equal(t, widest, u.Big())

	tooWide := new(big.Int).Lsh(big.NewInt(1), 256).String()
	_, err = ParseUint(tooWide)
	require.EqualError(t, err, `"`+tooWide+`" exceeds 256 bits`)

	var req VoteRequest
	require.NoError(t, json.Unmarshal([]byte(`{"candidate_id": `+tooWide+`}`), &req))
	require.Error(t, req.CandidateID.Err())
}

func TestUint_MarshalJSON(t *testing.T) {
	u := NewUint(new(big.Int).Lsh(big.NewInt(1), 70))

	data, err := json.Marshal(u)
	require.NoError(t, err)
	require.Equal(t, `"1180591620717411303424"`, string(data))

	require.Equal(t, "0", NewUint(nil).String())
}

func TestParseUint(t *testing.T) {
	u, err := ParseUint(" 42 ")
	require.NoError(t, err)
	require.Equal(t, int64(42), u.Big().Int64())

	// Big returns a copy.
	u.Big().SetInt64(1)
	require.Equal(t, "42", u.String())

	_, err = ParseUint("")
	require.EqualError(t, err, "empty value")

	_, err = ParseUint("-3")
	require.EqualError(t, err, `"-3" is negative`)

	_, err = ParseUint("0x10")
	require.EqualError(t, err, `"0x10" is not an integer`)

	var nilUint *Uint
	require.Nil(t, nilUint.Big())
	require.Empty(t, nilUint.String())
}

func TestCreateElectionRequest_ResolvedName(t *testing.T) {
	req := CreateElectionRequest{ElectionName: "Board Election"}
	require.Equal(t, "Board Election", req.ResolvedName())

	req.Name = "Council"
	require.Equal(t, "Council", req.ResolvedName())
}
