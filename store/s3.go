package store

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	raven "github.com/getsentry/raven-go"
)

// S3 is a Store kept in an S3 bucket. Prefix is prepended to every key so a
// bucket can be shared between stores. Do not change Bucket or Prefix while
// calls are in flight.
type S3 struct {
	svc    *s3.S3
	upl    *s3manager.Uploader
	Bucket string
	Prefix string
}

var _ Store = &S3{}

// NewS3 creates an S3 store over the given bucket using the credentials in
// the session.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		svc:    s3.New(awsSession),
		upl:    s3manager.NewUploader(awsSession),
	}
}

// List returns every key in this store, honoring the store's Prefix.
func (s *S3) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.Bucket),
			Prefix: aws.String(s.Prefix),
		}
		err := s.svc.ListObjectsV2Pages(input,
			func(page *s3.ListObjectsV2Output, lastpage bool) bool {
				for _, item := range page.Contents {
					out <- strings.TrimPrefix(*item.Key, s.Prefix)
				}
				return !lastpage
			})
		if err != nil {
			log.Println("S3 List:", s.Prefix, err)
			raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix})
		}
	}()
	return out
}

// ListPrefix returns the keys having the given prefix (after the store's
// own Prefix).
func (s *S3) ListPrefix(prefix string) ([]string, error) {
	var result []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + prefix),
	}
	err := s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, item := range page.Contents {
				result = append(result, strings.TrimPrefix(*item.Key, s.Prefix))
			}
			return !lastpage
		})
	if err != nil {
		log.Println("S3 ListPrefix:", s.Prefix, prefix, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix})
	}
	return result, err
}

// Open returns a ReadAtCloser for the value under key. Data is ranged in
// from S3 as it is read, which matches the chunk-at-a-time access pattern
// of the delivery path.
func (s *S3) Open(key string) (ReadAtCloser, int64, error) {
	size, err := s.stat(key)
	if err != nil {
		return nil, 0, err
	}
	return &s3ReadAtCloser{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
		size:   size,
	}, size, nil
}

// Create returns a writer uploading to key. The upload runs as the writer
// is written to, using the multipart interface underneath.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	_, err := s.stat(key)
	if err == nil {
		return nil, ErrKeyExists
	}
	pr, pw := io.Pipe()
	w := &s3writer{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.upl.Upload(&s3manager.UploadInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(s.Prefix + key),
			Body:   pr,
		})
		if err != nil {
			raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Key": key})
			pr.CloseWithError(err)
		}
		w.done <- err
	}()
	return w, nil
}

type s3writer struct {
	pw   *io.PipeWriter
	done chan error
	once sync.Once
}

func (w *s3writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3writer) Close() error {
	var err error
	w.once.Do(func() {
		w.pw.Close()
		err = <-w.done
	})
	return err
}

// Delete removes key. It is not an error to delete a missing key.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		log.Println("S3 Delete:", s.Prefix, key, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Key": key})
	}
	return err
}

func (s *S3) stat(key string) (int64, error) {
	info, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		return 0, err
	}
	return *info.ContentLength, nil
}

// s3ReadAtCloser adapts ranged GET requests to the io.ReaderAt interface.
// It is not safe for concurrent use.
type s3ReadAtCloser struct {
	svc    *s3.S3
	bucket string
	key    string
	size   int64
}

func (rac *s3ReadAtCloser) ReadAt(p []byte, off int64) (int, error) {
	if off >= rac.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end > rac.size-1 {
		end = rac.size - 1
	}
	out, err := rac.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(rac.bucket),
		Key:    aws.String(rac.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == "InvalidRange" {
			return 0, io.EOF
		}
		raven.CaptureError(err, map[string]string{"Bucket": rac.bucket, "Key": rac.key})
		return 0, err
	}
	defer out.Body.Close()
	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err == nil && off+int64(n) >= rac.size {
		err = io.EOF
	}
	return n, err
}

func (rac *s3ReadAtCloser) Close() error { return nil }
