package s3

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a *Store whose HTTP transport is an in-process fake
// bucket. Only the calls the archive store makes are implemented.
func NewMockForTests() *Store {
	bucket := &fakeBucket{objects: make(map[string][]byte)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: bucket}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
	return &Store{client: client, presign: s3.NewPresignClient(client), bucket: "mock-bucket"}
}

// fakeBucket answers path-style Head/Get/Put/Delete/ListObjectsV2 requests
// from a process-local map.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.TrimPrefix(strings.TrimPrefix(req.URL.Path, "/mock-bucket"), "/")
	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		return b.list(req.URL.Query().Get("prefix"))
	case req.Method == http.MethodHead:
		payload, ok := b.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		return respond(http.StatusOK, nil, http.Header{
			"Content-Length": {strconv.Itoa(len(payload))},
			"Content-Type":   {"application/json"},
		}), nil
	case req.Method == http.MethodGet:
		payload, ok := b.objects[key]
		if !ok {
			return respond(http.StatusNotFound, noSuchKeyBody(key), http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(http.StatusOK, payload, http.Header{"Content-Type": {"application/json"}}), nil
	case req.Method == http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if _, exists := b.objects[key]; !exists {
			b.objects[key] = unchunk(body)
		}
		return respond(http.StatusOK, nil, http.Header{"ETag": {`"mock"`}}), nil
	case req.Method == http.MethodDelete:
		delete(b.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

type listEntry struct {
	Key          string `xml:"Key"`
	Size         int    `xml:"Size"`
	LastModified string `xml:"LastModified"`
}

type listResult struct {
	XMLName     xml.Name    `xml:"ListBucketResult"`
	IsTruncated bool        `xml:"IsTruncated"`
	Contents    []listEntry `xml:"Contents"`
}

func (b *fakeBucket) list(prefix string) (*http.Response, error) {
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	result := listResult{}
	stamp := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	for _, k := range keys {
		result.Contents = append(result.Contents, listEntry{Key: k, Size: len(b.objects[k]), LastModified: stamp})
	}
	body, err := xml.Marshal(result)
	if err != nil {
		return nil, err
	}
	return respond(http.StatusOK, append([]byte(xml.Header), body...), http.Header{"Content-Type": {"application/xml"}}), nil
}

func respond(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func noSuchKeyBody(key string) []byte {
	type errorResult struct {
		XMLName xml.Name `xml:"Error"`
		Code    string   `xml:"Code"`
		Message string   `xml:"Message"`
		Key     string   `xml:"Key"`
	}
	body, _ := xml.Marshal(errorResult{Code: "NoSuchKey", Message: "The specified key does not exist.", Key: key})
	return body
}

// unchunk strips aws-chunked framing from streaming-signed uploads:
// <hex-size>[;chunk-signature=...]\r\n<payload>\r\n0\r\n... Anything after
// the payload, checksum trailers included, is dropped.
func unchunk(body []byte) []byte {
	head, rest, ok := bytes.Cut(body, []byte("\r\n"))
	if !ok {
		return body
	}
	if i := bytes.IndexByte(head, ';'); i >= 0 {
		head = head[:i]
	}
	size, err := strconv.ParseInt(string(bytes.TrimSpace(head)), 16, 64)
	if err != nil || size <= 0 || size > int64(len(rest)) {
		return body
	}
	return rest[:size]
}
