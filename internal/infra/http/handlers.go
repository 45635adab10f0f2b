package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"certus/internal/domain"
	"certus/internal/infra/crypto"
	"certus/internal/usecase"
	"certus/pkg/digest"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 64 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createProofRequest struct {
	Hash     string            `json:"hash"`
	Subject  domain.Subject    `json:"subject"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type republishResponse struct {
	Published int `json:"published"`
}

type rotateKeyResponse struct {
	ActiveFingerprint string `json:"active_fingerprint"`
}

func (s *Server) handleCreateProof(c *gin.Context) {
	var req createProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	proof, err := s.issueUC.Execute(c.Request.Context(), usecase.IssueProofRequest{
		Hash:     req.Hash,
		Subject:  req.Subject,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, proof)
}

func (s *Server) handleCreateProofFile(c *gin.Context) {
	hash, name, ok := s.hashUpload(c)
	if !ok {
		return
	}
	subject := domain.Subject{
		Type:      c.PostForm("subject_type"),
		Namespace: c.PostForm("subject_namespace"),
		ID:        c.PostForm("subject_id"),
	}
	if subject.Type == "" {
		subject.Type = "file"
	}
	if subject.ID == "" {
		subject.ID = name
	}
	proof, err := s.issueUC.Execute(c.Request.Context(), usecase.IssueProofRequest{
		Hash:    hash,
		Subject: subject,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, proof)
}

func (s *Server) handleGetProof(c *gin.Context) {
	proof, err := s.proofs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proof)
}

func (s *Server) handleVerifyHash(c *gin.Context) {
	result := s.cascadeUC.VerifyByHash(c.Request.Context(), c.Param("hash"))
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVerifyFile(c *gin.Context) {
	hash, _, ok := s.hashUpload(c)
	if !ok {
		return
	}
	result := s.cascadeUC.VerifyByHash(c.Request.Context(), hash)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSnapshotStatus(c *gin.Context) {
	status, err := s.batcherUC.SnapshotStatus(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleSnapshotManifest(c *gin.Context) {
	batch, err := strconv.ParseInt(c.Param("batch"), 10, 64)
	if err != nil || batch <= 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BATCH", "batch must be a positive integer")
		return
	}
	snapshot, err := s.snapshots.Get(c.Request.Context(), batch)
	if err != nil {
		writeError(c, err)
		return
	}
	hashes, err := s.proofs.ListBatchHashes(c.Request.Context(), batch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"manifest":           usecase.BuildManifest(*snapshot, hashes),
		"object_store_url":   snapshot.ObjectStoreURL,
		"archive_txid":       snapshot.ArchiveTxID,
		"integrity_verified": snapshot.IntegrityVerified,
		"created_at":         snapshot.CreatedAt,
	})
}

func (s *Server) handleSnapshotCheck(c *gin.Context) {
	result, err := s.batcherUC.CheckAndCreateSnapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAuditRun(c *gin.Context) {
	enhanced := c.Query("enhanced") == "true"
	summary, err := s.auditUC.Run(c.Request.Context(), enhanced)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleCrossMirror(c *gin.Context) {
	date := c.Query("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}
	validations, err := s.auditUC.CrossMirrorResults(c.Request.Context(), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "validations": validations})
}

func (s *Server) handleArchiveRepublish(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	published, err := s.publisherUC.RepublishPending(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, republishResponse{Published: published})
}

func (s *Server) handleRotateKey(c *gin.Context) {
	key, err := crypto.GenerateKey()
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.crypto.Rotate(key); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rotateKeyResponse{ActiveFingerprint: s.crypto.ActiveFingerprint()})
}

// hashUpload streams the multipart "file" part through sha256.
func (s *Server) hashUpload(c *gin.Context) (hash, filename string, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_UPLOAD", "multipart field 'file' is required")
		return "", "", false
	}
	f, err := header.Open()
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
		return "", "", false
	}
	defer f.Close()
	hash, err = digest.SHA256Reader(f)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
		return "", "", false
	}
	return hash, header.Filename, true
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidHash):
		status, code = http.StatusBadRequest, "INVALID_HASH"
	case errors.Is(err, domain.ErrInvalidProof):
		status, code = http.StatusBadRequest, "INVALID_PROOF"
	case errors.Is(err, domain.ErrSchemaVersion):
		status, code = http.StatusBadRequest, "SCHEMA_VERSION"
	case errors.Is(err, domain.ErrSignatureInvalid):
		status, code = http.StatusBadRequest, "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrConcurrentBatch):
		status, code = http.StatusConflict, "CONCURRENT_BATCH"
	case errors.Is(err, domain.ErrNoSigningKey):
		status, code = http.StatusServiceUnavailable, "NO_SIGNING_KEY"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
