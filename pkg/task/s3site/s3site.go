package s3site

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/williamokano/web_deployer/pkg/assets"
	"github.com/williamokano/web_deployer/pkg/awsclient"
	"github.com/williamokano/web_deployer/pkg/config"
	"github.com/williamokano/web_deployer/pkg/policy"
	"github.com/williamokano/web_deployer/pkg/task"
)

// Task provisions an S3 bucket for static website hosting, attaches the
// public-read policy, and uploads the site content
type Task struct {
	name       string
	client     *s3.Client
	uploader   *manager.Uploader
	opts       options
	region     string
	endpoint   string
	workDir    string
	maxUploads int
	logger     zerolog.Logger
}

type options struct {
	bucket        string
	source        string // local dir to upload; empty renders the built-in site
	indexDocument string
	errorDocument string
	title         string
	heading       string
	message       string
}

func init() {
	task.Register("s3_site", func(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (task.Task, error) {
		return New(ctx, deps, cfg)
	})
}

// New creates an s3_site task
func New(ctx context.Context, deps task.Deps, cfg config.TaskConfig) (*Task, error) {
	opts, err := parseOptions(deps.Project, cfg.Options)
	if err != nil {
		return nil, err
	}

	client := awsclient.NewS3(deps.AWS, deps.AWSOptions)

	return &Task{
		name:       cfg.Name,
		client:     client,
		uploader:   manager.NewUploader(client),
		opts:       opts,
		region:     deps.Region,
		endpoint:   deps.AWSOptions.Endpoint,
		workDir:    deps.WorkDir,
		maxUploads: deps.MaxUploads,
		logger:     deps.Logger.With().Str("task", cfg.Name).Logger(),
	}, nil
}

func parseOptions(project string, raw map[string]interface{}) (options, error) {
	o := task.Options(raw)
	site := assets.DefaultSiteParams(project)

	opts := options{
		bucket:        o.StringDefault("bucket", project+"-site"),
		source:        o.StringDefault("source", ""),
		indexDocument: o.StringDefault("index_document", "index.html"),
		errorDocument: o.StringDefault("error_document", "error.html"),
		title:         o.StringDefault("title", site.Title),
		heading:       o.StringDefault("heading", site.Heading),
		message:       o.StringDefault("message", site.Message),
	}

	if err := checkBucketName(opts.bucket); err != nil {
		return options{}, err
	}

	return opts, nil
}

func checkBucketName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name %q must be 3-63 characters: %w", name, task.ErrInvalidConfig)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '.' {
			return fmt.Errorf("bucket name %q may only contain lowercase letters, digits, hyphens and dots: %w", name, task.ErrInvalidConfig)
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("bucket name %q must start and end with a letter or digit: %w", name, task.ErrInvalidConfig)
	}
	return nil
}

func (t *Task) Name() string { return t.name }
func (t *Task) Type() string { return "s3_site" }

// Execute provisions the bucket for website hosting and uploads the site.
// Every step is idempotent, so rerunning after a mid-flight failure is safe.
func (t *Task) Execute(ctx context.Context) (task.Outputs, error) {
	if err := t.ensureBucket(ctx); err != nil {
		return nil, err
	}
	if err := t.allowPublicPolicies(ctx); err != nil {
		return nil, err
	}
	if err := t.configureWebsite(ctx); err != nil {
		return nil, err
	}
	if err := t.attachPolicy(ctx); err != nil {
		return nil, err
	}

	dir := t.opts.source
	if dir == "" {
		dir = filepath.Join(t.workDir, "site")
		params := assets.SiteParams{
			Title:   t.opts.title,
			Heading: t.opts.heading,
			Message: t.opts.message,
		}
		if _, err := assets.RenderSite(dir, params); err != nil {
			return nil, task.WrapError(t.name, "render site", err)
		}
		t.logger.Info().Str("dir", dir).Msg("rendered built-in site")
	}

	uploaded, err := t.syncDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	return task.Outputs{
		"bucket":      t.opts.bucket,
		"website_url": WebsiteURL(t.opts.bucket, t.region, t.endpoint),
		"files":       strconv.Itoa(uploaded),
	}, nil
}

// Close is a no-op for S3
func (t *Task) Close() error {
	return nil
}

func (t *Task) ensureBucket(ctx context.Context) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(t.opts.bucket)}
	// us-east-1 is the one region that must not appear in the constraint
	if t.region != "" && t.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(t.region),
		}
	}

	_, err := t.client.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			t.logger.Debug().Str("bucket", t.opts.bucket).Msg("bucket already exists")
			return nil
		}
		var taken *types.BucketAlreadyExists
		if errors.As(err, &taken) {
			return fmt.Errorf("bucket name %s is taken by another account: %w", t.opts.bucket, task.ErrPreconditionFailed)
		}
		return task.WrapError(t.name, "create bucket", err)
	}

	t.logger.Info().Str("bucket", t.opts.bucket).Msg("bucket created")
	return nil
}

// allowPublicPolicies lifts the public access block new buckets get by
// default, which would otherwise reject the public-read policy
func (t *Task) allowPublicPolicies(ctx context.Context) error {
	_, err := t.client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(t.opts.bucket),
		PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(false),
			BlockPublicPolicy:     aws.Bool(false),
			IgnorePublicAcls:      aws.Bool(false),
			RestrictPublicBuckets: aws.Bool(false),
		},
	})
	if err != nil {
		return task.WrapError(t.name, "configure public access", err)
	}
	return nil
}

func (t *Task) configureWebsite(ctx context.Context) error {
	_, err := t.client.PutBucketWebsite(ctx, &s3.PutBucketWebsiteInput{
		Bucket: aws.String(t.opts.bucket),
		WebsiteConfiguration: &types.WebsiteConfiguration{
			IndexDocument: &types.IndexDocument{Suffix: aws.String(t.opts.indexDocument)},
			ErrorDocument: &types.ErrorDocument{Key: aws.String(t.opts.errorDocument)},
		},
	})
	if err != nil {
		return task.WrapError(t.name, "configure website", err)
	}
	return nil
}

func (t *Task) attachPolicy(ctx context.Context) error {
	doc, err := policy.PublicReadPolicy(t.opts.bucket).Marshal()
	if err != nil {
		return task.WrapError(t.name, "render policy", err)
	}
	if err := policy.Validate(doc); err != nil {
		return task.WrapError(t.name, "validate policy", err)
	}

	_, err = t.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(t.opts.bucket),
		Policy: aws.String(string(doc)),
	})
	if err != nil {
		return task.WrapError(t.name, "attach policy", err)
	}

	t.logger.Info().Str("bucket", t.opts.bucket).Msg("public-read policy attached")
	return nil
}

// WebsiteURL returns the public website endpoint. With a custom endpoint
// (localstack) the bucket is addressed path-style under that endpoint.
func WebsiteURL(bucket, region, endpoint string) string {
	if endpoint != "" {
		return strings.TrimSuffix(endpoint, "/") + "/" + bucket
	}
	return fmt.Sprintf("http://%s.s3-website-%s.amazonaws.com", bucket, region)
}
