package types

import "encoding/json"

type WorkflowCreateRequest struct {
	Name     string          `json:"name" validate:"required,max=256"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

type WorkflowVersionCreateRequest struct {
	Snapshot json.RawMessage `json:"snapshot" validate:"required"`
}

type DeploymentUpsertRequest struct {
	WorkflowVersionID string `json:"workflow_version_id" validate:"required,uuid"`
	MachineID         string `json:"machine_id" validate:"required,uuid"`
	Environment       string `json:"environment" validate:"required,oneof=production staging public-share"`
}

type MachineCreateRequest struct {
	Name      string `json:"name" validate:"required,max=256"`
	Endpoint  string `json:"endpoint" validate:"required,url"`
	Type      string `json:"type" validate:"omitempty,oneof=classic runpod-serverless modal-serverless comfy-deploy-serverless workspace"`
	AuthToken string `json:"auth_token"`
}

type MachineAccessRequest struct {
	WorkflowVersionID string `json:"workflow_version_id" validate:"required,uuid"`
}

type APIKeyCreateRequest struct {
	Name string `json:"name" validate:"required,max=256"`
}

type CheckoutRequest struct {
	Plan       string `json:"plan" validate:"required"`
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

type RunCreateRequest struct {
	WorkflowVersionID string          `json:"workflow_version_id" validate:"required,uuid"`
	MachineID         string          `json:"machine_id" validate:"required,uuid"`
	Origin            string          `json:"origin" validate:"omitempty,oneof=manual api public-share"`
	Inputs            json.RawMessage `json:"inputs,omitempty"`
}

// RunUpdateRequest is sent by a machine while it executes a run.
type RunUpdateRequest struct {
	RunID      string          `json:"run_id" validate:"required,uuid"`
	Status     string          `json:"status" validate:"omitempty,oneof=not-started running uploading success failed"`
	OutputData json.RawMessage `json:"output_data,omitempty"`
}
