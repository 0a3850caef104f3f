package mutation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"slices"
	"strconv"
	"strings"

	"github.com/nimburion/providerdesk/pkg/dataservice"
)

const removeSuffix = "_remove"

// RemoveField is the wire name of the flag that clears field.
func RemoveField(field string) string { return field + removeSuffix }

// Encode builds the wire body for req: multipart/form-data when a file is
// uploaded, JSON otherwise. Kept attachments are omitted.
func Encode(req Request) (dataservice.Body, error) {
	if req.hasUploads() {
		return encodeMultipart(req)
	}
	payload := make(map[string]any, len(req.Fields)+len(req.Attachments))
	for k, v := range req.Fields {
		payload[k] = v
	}
	for _, a := range req.Attachments {
		if a.Change == AttachmentRemove {
			payload[RemoveField(a.Field)] = true
		}
	}
	return dataservice.JSONBody(payload)
}

func encodeMultipart(req Request) (dataservice.Body, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(req.Fields))
	for k := range req.Fields {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, name := range names {
		value, ok, err := formValue(req.Fields[name])
		if err != nil {
			return dataservice.Body{}, fmt.Errorf("encode field %s: %w", name, err)
		}
		if !ok {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return dataservice.Body{}, fmt.Errorf("write field %s: %w", name, err)
		}
	}

	for _, a := range req.Attachments {
		switch a.Change {
		case AttachmentRemove:
			if err := w.WriteField(RemoveField(a.Field), "1"); err != nil {
				return dataservice.Body{}, fmt.Errorf("write field %s: %w", RemoveField(a.Field), err)
			}
		case AttachmentReplace:
			if err := writeFile(w, a); err != nil {
				return dataservice.Body{}, err
			}
		}
	}
	if err := w.Close(); err != nil {
		return dataservice.Body{}, fmt.Errorf("close multipart body: %w", err)
	}
	return dataservice.Body{ContentType: w.FormDataContentType(), Data: buf.Bytes()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(w *multipart.Writer, a Attachment) error {
	contentType := a.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(a.Field), quoteEscaper.Replace(a.File.Name)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", a.Field, err)
	}
	if _, err := part.Write(a.File.Data); err != nil {
		return fmt.Errorf("write part %s: %w", a.Field, err)
	}
	return nil
}

// formValue renders a field for a form body. Nil values are skipped;
// structured values travel as JSON text.
func formValue(v any) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, true, nil
	case bool:
		if x {
			return "1", true, nil
		}
		return "0", true, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), true, nil
	case fmt.Stringer:
		return x.String(), true, nil
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return "", false, err
		}
		return string(raw), true, nil
	}
}
