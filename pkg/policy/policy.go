package policy

import (
	"encoding/json"
	"fmt"
)

// Version is the current IAM policy language version
const Version = "2012-10-17"

// StringOrSlice is a policy field that AWS renders as a bare string when it
// holds a single value and as a list otherwise
type StringOrSlice []string

// MarshalJSON renders a single element as a bare string
func (s StringOrSlice) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON accepts both a bare string and a list of strings
func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrSlice{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = StringOrSlice(many)
	return nil
}

// Principal identifies who a statement applies to, either everyone ("*")
// or a set of AWS principals
type Principal struct {
	Any bool
	AWS StringOrSlice
}

// MarshalJSON renders the anonymous principal as "*"
func (p Principal) MarshalJSON() ([]byte, error) {
	if p.Any {
		return json.Marshal("*")
	}
	return json.Marshal(struct {
		AWS StringOrSlice `json:"AWS"`
	}{AWS: p.AWS})
}

// UnmarshalJSON accepts "*" or an {"AWS": ...} object
func (p *Principal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "*" {
			return fmt.Errorf("unsupported principal %q", s)
		}
		*p = Principal{Any: true}
		return nil
	}

	var obj struct {
		AWS StringOrSlice `json:"AWS"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unsupported principal: %w", err)
	}
	*p = Principal{AWS: obj.AWS}
	return nil
}

// Statement is a single policy statement
type Statement struct {
	Sid       string        `json:"Sid,omitempty"`
	Effect    string        `json:"Effect"`
	Principal *Principal    `json:"Principal,omitempty"`
	Action    StringOrSlice `json:"Action"`
	Resource  StringOrSlice `json:"Resource"`
}

// Document is an IAM policy document
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// PublicReadPolicy returns the bucket policy granting anonymous read access
// to every object in the bucket, as required for S3 static website hosting
func PublicReadPolicy(bucket string) Document {
	return Document{
		Version: Version,
		Statement: []Statement{
			{
				Sid:       "PublicReadGetObject",
				Effect:    "Allow",
				Principal: &Principal{Any: true},
				Action:    StringOrSlice{"s3:GetObject"},
				Resource:  StringOrSlice{ObjectsARN(bucket)},
			},
		},
	}
}

// BucketARN returns the ARN of the bucket itself
func BucketARN(bucket string) string {
	return "arn:aws:s3:::" + bucket
}

// ObjectsARN returns the ARN matching every object in the bucket
func ObjectsARN(bucket string) string {
	return BucketARN(bucket) + "/*"
}

// Marshal renders the document as indented JSON, the form AWS consoles show
func (d Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Parse decodes a policy document
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return doc, nil
}
