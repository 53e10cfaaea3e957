package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractID_RecognizedShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
	}{
		{"watch with scheme and www", "https://www.youtube.com/watch?v=RRubcjpTkks"},
		{"watch without www", "https://youtube.com/watch?v=RRubcjpTkks"},
		{"watch without scheme", "www.youtube.com/watch?v=RRubcjpTkks"},
		{"watch bare host", "youtube.com/watch?v=RRubcjpTkks"},
		{"watch http", "http://www.youtube.com/watch?v=RRubcjpTkks"},
		{"watch with extra params", "https://www.youtube.com/watch?v=RRubcjpTkks&t=42s"},
		{"short link", "https://youtu.be/RRubcjpTkks"},
		{"short link without scheme", "youtu.be/RRubcjpTkks"},
		{"embed", "https://www.youtube.com/embed/RRubcjpTkks"},
		{"legacy v path", "https://www.youtube.com/v/RRubcjpTkks"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			id, err := ExtractID(tc.url)
			require.NoError(t, err)
			require.Equal(t, ID("RRubcjpTkks"), id)
		})
	}
}

func TestExtractID_IdentifierCharset(t *testing.T) {
	t.Parallel()

	id, err := ExtractID("https://youtu.be/a-b_C9d0EfG")
	require.NoError(t, err)
	require.Equal(t, ID("a-b_C9d0EfG"), id)
}

func TestExtractID_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
	}{
		{"not a url", "not-a-url"},
		{"empty", ""},
		{"wrong host", "https://vimeo.com/watch?v=RRubcjpTkks"},
		{"no path", "https://www.youtube.com/"},
		{"short identifier", "https://youtu.be/RRubcjpTkk"},
		{"garbage prefix", "xx https://www.youtube.com/watch?v=RRubcjpTkks"},
		{"channel page", "https://www.youtube.com/channel/UC-lHJZR3Gqxm24_Vd_AJ5Yw"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ExtractID(tc.url)
			require.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}
