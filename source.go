package bpe_corpus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/edsrzf/mmap-go"
)

const s3Scheme = "s3://"

// Source
// A re-openable line stream. Every Open starts a new linear read, so the
// line count and the sampling pass see the same positions.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
	CountLines() (int, error)
	Size() (int64, error)
}

// S3Client is the subset of the S3 API that sources use. *s3.S3 satisfies
// it.
type S3Client interface {
	GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	HeadObject(input *s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
}

// NewSource
// Resolves a location to a Source. `s3://bucket/key` locations require a
// client; anything else is a local file path.
func NewSource(location string, client S3Client) (Source, error) {
	if !strings.HasPrefix(location, s3Scheme) {
		return &FileSource{Path: location}, nil
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, s3Scheme),
		"/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: malformed S3 location %q",
			ErrInvalidArgument, location)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: no S3 client for %q",
			ErrInvalidArgument, location)
	}
	return &S3Source{Client: client, Bucket: bucket, Key: key}, nil
}

// JoinLocation joins a directory location and a file name, keeping `/`
// separators for S3 locations.
func JoinLocation(dir, name string) string {
	if strings.HasPrefix(dir, s3Scheme) {
		return s3Scheme + path.Join(strings.TrimPrefix(dir, s3Scheme), name)
	}
	return filepath.Join(dir, name)
}

// FileSource is a local JSONL file.
type FileSource struct {
	Path string
}

func (f *FileSource) Name() string { return f.Path }

func (f *FileSource) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}

func (f *FileSource) Size() (int64, error) {
	stat, err := os.Stat(f.Path)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// CountLines
// Counts lines by memory mapping the file. A trailing line without a
// newline counts as a line.
func (f *FileSource) CountLines() (int, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return 0, err
	}
	if stat.Size() == 0 {
		// Zero length mappings are rejected on most platforms.
		return 0, nil
	}
	fileMmap, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return 0, err
	}
	defer fileMmap.Unmap()
	return countLinesInBytes(fileMmap), nil
}

func countLinesInBytes(data []byte) int {
	lines := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		lines++
	}
	return lines
}

// CountLinesReader counts lines the same way as FileSource.CountLines,
// streaming r.
func CountLinesReader(r io.Reader) (int, error) {
	reader := bufio.NewReaderSize(r, lineBufSz)
	buf := make([]byte, 64*1024)
	lines := 0
	var last byte
	seen := false
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			lines += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
			seen = true
		}
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return 0, err
		}
	}
	if seen && last != '\n' {
		lines++
	}
	return lines, nil
}

// S3Source is a JSONL object in an S3 bucket.
type S3Source struct {
	Client S3Client
	Bucket string
	Key    string
}

func (s *S3Source) Name() string {
	return s3Scheme + s.Bucket + "/" + s.Key
}

func (s *S3Source) Open() (io.ReadCloser, error) {
	out, err := s.Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, s3Error("fetching", s.Name(), err)
	}
	return out.Body, nil
}

func (s *S3Source) Size() (int64, error) {
	out, err := s.Client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return 0, s3Error("stat", s.Name(), err)
	}
	return aws.Int64Value(out.ContentLength), nil
}

// CountLines streams the object once.
func (s *S3Source) CountLines() (int, error) {
	body, err := s.Open()
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return CountLinesReader(body)
}

// s3Error maps missing objects and buckets onto fs.ErrNotExist so callers
// treat them like missing local files.
func s3Error(op, name string, err error) error {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return fmt.Errorf("%s %s: %w: %w", op, name, fs.ErrNotExist, err)
		}
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}
