package shopify

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/timmy/shopmedia/internal/logger"
)

// StagedTarget is where Shopify wants an upload sent before it becomes a file.
type StagedTarget struct {
	URL         string            `json:"url"`
	ResourceURL string            `json:"resourceUrl"`
	Parameters  []StagedParameter `json:"parameters"`
}

// StagedParameter is one form field the target expects.
type StagedParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CreatedFile is a file registered through fileCreate.
type CreatedFile struct {
	ID     string
	URL    string // empty while Shopify is still processing the upload
	Status string
}

const stagedUploadsCreateMutation = `mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets { url resourceUrl parameters { name value } }
    userErrors { field message }
  }
}`

const fileCreateMutation = `mutation fileCreate($files: [FileCreateInput!]!) {
  fileCreate(files: $files) {
    files {
      id
      fileStatus
      ... on MediaImage { image { url } }
    }
    userErrors { field message }
  }
}`

const fileNodeQuery = `query fileNode($id: ID!) {
  node(id: $id) {
    id
    ... on MediaImage { fileStatus image { url } }
  }
}`

const metaobjectUpdateMutation = `mutation metaobjectUpdate($id: ID!, $metaobject: MetaobjectUpdateInput!) {
  metaobjectUpdate(id: $id, metaobject: $metaobject) {
    metaobject { id handle }
    userErrors { field message }
  }
}`

type mediaImageNode struct {
	ID         string `json:"id"`
	FileStatus string `json:"fileStatus"`
	Image      *struct {
		URL string `json:"url"`
	} `json:"image"`
}

func (n mediaImageNode) url() string {
	if n.Image == nil {
		return ""
	}
	return n.Image.URL
}

// CreateStagedUpload reserves an upload target for one image.
func (c *Client) CreateStagedUpload(ctx context.Context, filename, mimeType string, size int) (*StagedTarget, error) {
	type result struct {
		StagedUploadsCreate struct {
			StagedTargets []StagedTarget `json:"stagedTargets"`
			UserErrors    []UserError    `json:"userErrors"`
		} `json:"stagedUploadsCreate"`
	}
	data, err := Query[result](ctx, c, stagedUploadsCreateMutation, map[string]interface{}{
		"input": []map[string]interface{}{{
			"filename":   filename,
			"mimeType":   mimeType,
			"httpMethod": "POST",
			"resource":   "IMAGE",
			"fileSize":   strconv.Itoa(size),
		}},
	})
	if err != nil {
		return nil, err
	}
	if err := c.userErrorsErr("stagedUploadsCreate", data.StagedUploadsCreate.UserErrors); err != nil {
		return nil, err
	}
	if len(data.StagedUploadsCreate.StagedTargets) == 0 {
		return nil, &UpstreamError{URL: c.resolve("graphql.json"), Message: "stagedUploadsCreate returned no target"}
	}
	return &data.StagedUploadsCreate.StagedTargets[0], nil
}

// UploadStaged posts the bytes to target as multipart form data. The target
// is a pre-signed bucket URL, so no access token is sent.
func (c *Client) UploadStaged(ctx context.Context, target *StagedTarget, filename string, data []byte) error {
	if err := c.gw.throttle.Wait(ctx); err != nil {
		return err
	}

	form := make(map[string]string, len(target.Parameters))
	for _, p := range target.Parameters {
		form[p.Name] = p.Value
	}

	start := time.Now()
	resp, err := c.gw.http.R().
		SetContext(ctx).
		SetMultipartFormData(form).
		SetFileReader("file", filename, bytes.NewReader(data)).
		Post(target.URL)
	if err != nil {
		return &UpstreamError{URL: target.URL, Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &UpstreamError{URL: target.URL, Status: resp.StatusCode(), Message: snippet(resp.Body())}
	}

	logger.With(logger.Fields{
		logger.FieldSize:       len(data),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debug(ctx, "Uploaded %s to staged target", filename)
	return nil
}

// CreateFile registers an uploaded resource as a Files entry.
func (c *Client) CreateFile(ctx context.Context, resourceURL, alt string) (*CreatedFile, error) {
	type result struct {
		FileCreate struct {
			Files      []mediaImageNode `json:"files"`
			UserErrors []UserError      `json:"userErrors"`
		} `json:"fileCreate"`
	}
	input := map[string]interface{}{
		"originalSource": resourceURL,
		"contentType":    "IMAGE",
	}
	if alt != "" {
		input["alt"] = alt
	}
	data, err := Query[result](ctx, c, fileCreateMutation, map[string]interface{}{
		"files": []map[string]interface{}{input},
	})
	if err != nil {
		return nil, err
	}
	if err := c.userErrorsErr("fileCreate", data.FileCreate.UserErrors); err != nil {
		return nil, err
	}
	if len(data.FileCreate.Files) == 0 {
		return nil, &UpstreamError{URL: c.resolve("graphql.json"), Message: "fileCreate returned no file"}
	}
	f := data.FileCreate.Files[0]
	return &CreatedFile{ID: f.ID, URL: f.url(), Status: f.FileStatus}, nil
}

// FileImageURL looks up a file's current image URL and processing status.
func (c *Client) FileImageURL(ctx context.Context, id string) (string, string, error) {
	type result struct {
		Node *mediaImageNode `json:"node"`
	}
	data, err := Query[result](ctx, c, fileNodeQuery, map[string]interface{}{"id": id})
	if err != nil {
		return "", "", err
	}
	if data.Node == nil {
		return "", "", &UpstreamError{URL: c.resolve("graphql.json"), Status: 404, Message: "file " + id + " not found"}
	}
	return data.Node.url(), data.Node.FileStatus, nil
}

// UpdateMetaobjectField sets one field of a metaobject.
func (c *Client) UpdateMetaobjectField(ctx context.Context, id, key, value string) (string, error) {
	type result struct {
		MetaobjectUpdate struct {
			Metaobject *struct {
				ID     string `json:"id"`
				Handle string `json:"handle"`
			} `json:"metaobject"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"metaobjectUpdate"`
	}
	data, err := Query[result](ctx, c, metaobjectUpdateMutation, map[string]interface{}{
		"id": id,
		"metaobject": map[string]interface{}{
			"fields": []map[string]string{{"key": key, "value": value}},
		},
	})
	if err != nil {
		return "", err
	}
	if err := c.userErrorsErr("metaobjectUpdate", data.MetaobjectUpdate.UserErrors); err != nil {
		return "", err
	}
	if data.MetaobjectUpdate.Metaobject == nil {
		return "", &UpstreamError{URL: c.resolve("graphql.json"), Status: 404, Message: "metaobject " + id + " not found"}
	}
	return data.MetaobjectUpdate.Metaobject.ID, nil
}
