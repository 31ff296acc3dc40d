package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseByteSize(t *testing.T) {
	cases := map[string]ByteSize{
		"0":         0,
		"4096":      4096,
		"512B":      512,
		"20KB":      20 * KB,
		"20k":       20 * KB,
		"10MB":      10 * MB,
		"1G":        GB,
		"2TB":       2 * TB,
		"64Ki":      64 * KiB,
		"50Mi":      50 * MiB,
		"50mib":     50 * MiB,
		"1GI":       GiB,
		"1Ti":       TiB,
		" 50 Mi ":   50 * MiB,
		"1.5Mi":     ByteSize(1.5 * float64(MiB)),
		"0.5Gi":     GiB / 2,
		"2.5":       2,
		"100000000": 100000000,
	}

	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, err := ParseByteSize(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseByteSize_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "Mi", "-5Mi", "1.2.3Mi", "10XB", "ten", "20000000Ti"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseByteSize(in)
			assert.Error(t, err)
		})
	}

	_, err := ParseByteSize("")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestByteSize_String(t *testing.T) {
	assert.Equal(t, "0", ByteSize(0).String())
	assert.Equal(t, "1000", KB.String())
	assert.Equal(t, "50Mi", (50 * MiB).String())
	assert.Equal(t, "1536Ki", (MiB + 512*KiB).String())
	assert.Equal(t, "3Gi", (3 * GiB).String())
	assert.Equal(t, "2Ti", (2 * TiB).String())
	assert.Equal(t, "1025", ByteSize(1025).String())
}

func TestByteSize_StringParsesBack(t *testing.T) {
	for _, v := range []ByteSize{1, 999, KiB, 50 * MiB, MiB + 512*KiB, 10 * MB, 4 * GiB} {
		back, err := ParseByteSize(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, back, v.String())
	}
}

func TestByteSize_YAML(t *testing.T) {
	type storage struct {
		MaxUploadSize ByteSize `yaml:"max_upload_size"`
	}

	out, err := yaml.Marshal(storage{MaxUploadSize: 50 * MiB})
	require.NoError(t, err)
	assert.Equal(t, "max_upload_size: 50Mi\n", string(out))

	var in storage
	require.NoError(t, yaml.Unmarshal([]byte("max_upload_size: 20MB\n"), &in))
	assert.Equal(t, 20*MB, in.MaxUploadSize)

	assert.Error(t, yaml.Unmarshal([]byte("max_upload_size: lots\n"), &in))
}

func TestByteSize_Int64(t *testing.T) {
	assert.Equal(t, int64(50*MiB), (50 * MiB).Int64())
	assert.Equal(t, int64(1<<63-1), ByteSize(1<<64-1).Int64())
}
