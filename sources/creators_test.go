package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchforge/creators_proxy/testutil"
)

func TestNewCreatorSourceRequiresURL(t *testing.T) {
	_, err := NewCreatorSource(Config{URL: "  "}, nil, nil)
	require.Error(t, err)
}

func TestFetchDecodesArrayAndPassesFieldsThrough(t *testing.T) {
	fake := testutil.NewFakeSource(testutil.FakeResponse{
		Status: http.StatusOK,
		Body:   `[{"id":"abc","name":"Abc","service":"fansly","favorited":12,"indexed":1700000000.25,"updated":9007199254740993,"extra":{"nested":true}}]`,
	})
	defer fake.Close()

	src, err := NewCreatorSource(Config{URL: fake.URL()}, nil, nil)
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "abc", rec.String("id"))
	assert.Equal(t, float64(12), rec.Number("favorited"))
	assert.Equal(t, json.Number("9007199254740993"), rec["updated"])
	assert.Equal(t, map[string]any{"nested": true}, rec["extra"])
	assert.Equal(t, 1, fake.Calls())
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	fake := testutil.NewFakeSource()
	defer fake.Close()

	src, err := NewCreatorSource(Config{URL: fake.URL(), UserAgent: "creators-proxy/test"}, nil, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.NoError(t, err)

	header := fake.LastHeader()
	assert.Equal(t, DefaultAccept, header.Get("Accept"))
	assert.Equal(t, "creators-proxy/test", header.Get("User-Agent"))
}

func TestFetchNonSuccessStatusIsUnavailable(t *testing.T) {
	fake := testutil.NewFakeSource(testutil.FakeResponse{
		Status: http.StatusServiceUnavailable,
		Body:   "maintenance",
	})
	defer fake.Close()

	src, err := NewCreatorSource(Config{URL: fake.URL()}, nil, nil)
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	assert.Nil(t, records)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.False(t, errors.Is(err, ErrUpstreamUnreachable))

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusServiceUnavailable, upErr.StatusCode)
	assert.Equal(t, "maintenance", upErr.Body)
	assert.Contains(t, err.Error(), "503")
}

func TestFetchMalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"object": `{"id":"x"}`,
		"null":   `null`,
		"html":   `<html></html>`,
	} {
		t.Run(name, func(t *testing.T) {
			fake := testutil.NewFakeSource(testutil.FakeResponse{Status: http.StatusOK, Body: body})
			defer fake.Close()

			src, err := NewCreatorSource(Config{URL: fake.URL()}, nil, nil)
			require.NoError(t, err)

			_, err = src.Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUpstreamMalformed))
		})
	}
}

func TestFetchTransportFailureIsUnreachable(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	const url = "https://upstream.invalid/api/v1/creators"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewErrorResponder(errors.New("connection reset by peer")))

	src, err := NewCreatorSource(Config{URL: url}, client, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnreachable))

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 0, upErr.StatusCode)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchDoesNotRetry(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	const url = "https://upstream.invalid/api/v1/creators"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	src, err := NewCreatorSource(Config{URL: url}, client, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
