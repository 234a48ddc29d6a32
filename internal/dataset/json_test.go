package dataset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestCaseJSONRoundTrip(t *testing.T) {
	t.Parallel()
	original := Case{
		"Region": cty.StringVal("East"),
		"Sales":  cty.NumberIntVal(10),
		"Flag":   cty.True,
		"Note":   cty.NullVal(cty.DynamicPseudoType),
	}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Case
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	require.Len(t, decoded, len(original))
	assert.True(t, decoded["Region"].RawEquals(cty.StringVal("East")))
	assert.True(t, decoded["Sales"].RawEquals(cty.NumberIntVal(10)))
	assert.True(t, decoded["Flag"].RawEquals(cty.True))
	assert.True(t, decoded["Note"].IsNull())
}

func TestCaseUnmarshalFromHostPayload(t *testing.T) {
	t.Parallel()
	payload := []byte(`{"City":"Lyon","Population":513275,"Capital":false,"Mayor":null}`)

	var c Case
	require.NoError(t, json.Unmarshal(payload, &c))

	assert.True(t, c["City"].RawEquals(cty.StringVal("Lyon")))
	assert.True(t, c["Population"].RawEquals(cty.NumberIntVal(513275)))
	assert.True(t, c["Capital"].RawEquals(cty.False))
	assert.True(t, IsMissing(c["Mayor"]))
}
