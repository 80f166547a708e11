package designer

import (
	"io"
	"io/ioutil"

	"beacon/authority"
	"beacon/bizerror"
	"beacon/client/s3"
	"beacon/domain/permission"
	"beacon/session"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/fundwit/go-commons/types"
)

// design assets live under "designs/<workspaceId>/<name>" in the bucket

func assetKey(workspaceId types.ID, name string) string {
	return "designs/" + workspaceId.String() + "/" + name
}

// DetailAsset fetches one design asset, gated by designer.read in the
// workspace.
func DetailAsset(workspaceId types.ID, name string, s *session.Session) ([]byte, error) {
	if err := permission.CheckWorkspacePermission(s, workspaceId,
		authority.ResourceDesigner, authority.ActionRead); err != nil {
		return nil, err
	}

	r, err := s3.GetObjectFunc(assetKey(workspaceId, name), s)
	if err != nil {
		if serErr, ok := err.(oss.ServiceError); ok && serErr.Code == "NoSuchKey" {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

// CreateAsset stores a design asset. It is gated by designer.upload, the one
// action of the catalog that exists for the designer resource only.
func CreateAsset(workspaceId types.ID, name string, r io.Reader, s *session.Session) error {
	if err := permission.CheckWorkspacePermission(s, workspaceId,
		authority.ResourceDesigner, authority.ActionUpload); err != nil {
		return err
	}

	return s3.PutObjectFunc(assetKey(workspaceId, name), r, s)
}
