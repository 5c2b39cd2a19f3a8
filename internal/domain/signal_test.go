package domain_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dom/linklearn/internal/domain"
)

func TestSignalMailbox_OfferAnswerOverwrite(t *testing.T) {
	caller := uuid.New()
	callee := uuid.New()
	m := &domain.SignalMailbox{}

	require.NoError(t, m.Apply(domain.RoleCaller, caller, json.RawMessage(`{"type":"offer","sdp":"v1"}`)))
	require.NoError(t, m.Apply(domain.RoleCaller, caller, json.RawMessage(`{"type":"offer","sdp":"v2"}`)))
	require.NoError(t, m.Apply(domain.RoleCallee, callee, json.RawMessage(`{"type":"answer","sdp":"a1"}`)))

	var offer map[string]any
	require.NoError(t, json.Unmarshal(m.Offer, &offer))
	assert.Equal(t, "v2", offer["sdp"])
	assert.Equal(t, caller.String(), offer["sender_id"])

	var answer map[string]any
	require.NoError(t, json.Unmarshal(m.Answer, &answer))
	assert.Equal(t, callee.String(), answer["sender_id"])
}

func TestSignalMailbox_Ready(t *testing.T) {
	m := &domain.SignalMailbox{}
	require.NoError(t, m.Apply(domain.RoleCallee, uuid.New(), json.RawMessage(`{"type":"ready"}`)))

	assert.True(t, m.ReadyCallee)
	assert.False(t, m.ReadyCaller)
	assert.NotEmpty(t, m.ReadySignal)
}

func TestSignalMailbox_CandidatesKeepLastTen(t *testing.T) {
	caller := uuid.New()
	m := &domain.SignalMailbox{}

	for i := 1; i <= 12; i++ {
		msg := fmt.Sprintf(`{"type":"candidate","n":%d}`, i)
		require.NoError(t, m.Apply(domain.RoleCaller, caller, json.RawMessage(msg)))
	}

	require.Len(t, m.CandidatesCaller, domain.MaxCandidatesPerRole)
	assert.Empty(t, m.CandidatesCallee)

	var first, last map[string]any
	require.NoError(t, json.Unmarshal(m.CandidatesCaller[0], &first))
	require.NoError(t, json.Unmarshal(m.CandidatesCaller[9], &last))
	assert.EqualValues(t, 3, first["n"])
	assert.EqualValues(t, 12, last["n"])
}

func TestSignalMailbox_Invalid(t *testing.T) {
	m := &domain.SignalMailbox{}

	assert.ErrorIs(t, m.Apply(domain.RoleCaller, uuid.New(), json.RawMessage(`[1,2]`)), domain.ErrInvalidSignal)
	assert.ErrorIs(t, m.Apply(domain.RoleCaller, uuid.New(), json.RawMessage(`null`)), domain.ErrInvalidSignal)
}

func TestSignalMailbox_UnknownKindLeavesSlotsAlone(t *testing.T) {
	m := &domain.SignalMailbox{}
	require.NoError(t, m.Apply(domain.RoleCaller, uuid.New(), json.RawMessage(`{"type":"offer","sdp":"v=0"}`)))
	before, err := m.Encode()
	require.NoError(t, err)

	require.NoError(t, m.Apply(domain.RoleCallee, uuid.New(), json.RawMessage(`{"type":"hangup"}`)))
	require.NoError(t, m.Apply(domain.RoleCallee, uuid.New(), json.RawMessage(`{"sdp":"no type"}`)))

	after, err := m.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestSignalMailbox_RoundTrip(t *testing.T) {
	m := &domain.SignalMailbox{}
	require.NoError(t, m.Apply(domain.RoleCaller, uuid.New(), json.RawMessage(`{"type":"candidate","c":"x"}`)))

	data, err := m.Encode()
	require.NoError(t, err)

	decoded, err := domain.DecodeSignalMailbox(data)
	require.NoError(t, err)
	assert.Len(t, decoded.CandidatesCaller, 1)

	empty, err := domain.DecodeSignalMailbox(nil)
	require.NoError(t, err)
	assert.Empty(t, empty.CandidatesCaller)
}
