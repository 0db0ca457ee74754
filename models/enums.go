package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// decodeEnumString reads a JSON string for the enum UnmarshalJSON methods.
func decodeEnumString(data []byte, name string) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("%s must be string", name)
	}
	return s, nil
}

type WorkflowKind string

const (
	WorkflowCollection WorkflowKind = "Collection"
	WorkflowProvision  WorkflowKind = "Provision"
)

func ParseWorkflowKind(s string) (WorkflowKind, error) {
	switch s {
	case "Collection":
		return WorkflowCollection, nil
	case "Provision":
		return WorkflowProvision, nil
	default:
		return "", errors.New("invalid workflow kind")
	}
}

func (t *WorkflowKind) UnmarshalJSON(data []byte) error {
	s, err := decodeEnumString(data, "workflow kind")
	if err != nil {
		return err
	}
	v, err := ParseWorkflowKind(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// CollectionStatus is the status vocabulary of the Collection workflow.
type CollectionStatus string

const (
	CollectionRegistradoTesoreria CollectionStatus = "RegistradoTesoreria"
	CollectionEncoladoParaConteo  CollectionStatus = "EncoladoParaConteo"
	CollectionConteo              CollectionStatus = "Conteo"
	CollectionPendienteRevision   CollectionStatus = "PendienteRevision"
	CollectionAprobado            CollectionStatus = "Aprobado"
	CollectionRechazado           CollectionStatus = "Rechazado"
	CollectionCancelado           CollectionStatus = "Cancelado"
)

var AllCollectionStatuses = []CollectionStatus{
	CollectionRegistradoTesoreria,
	CollectionEncoladoParaConteo,
	CollectionConteo,
	CollectionPendienteRevision,
	CollectionAprobado,
	CollectionRechazado,
	CollectionCancelado,
}

// ParseCollectionStatus is the single conversion from stored or submitted
// strings into CollectionStatus.
func ParseCollectionStatus(s string) (CollectionStatus, error) {
	switch s {
	case "RegistradoTesoreria":
		return CollectionRegistradoTesoreria, nil
	case "EncoladoParaConteo":
		return CollectionEncoladoParaConteo, nil
	case "Conteo":
		return CollectionConteo, nil
	case "PendienteRevision":
		return CollectionPendienteRevision, nil
	case "Aprobado":
		return CollectionAprobado, nil
	case "Rechazado":
		return CollectionRechazado, nil
	case "Cancelado":
		return CollectionCancelado, nil
	default:
		return "", fmt.Errorf("%w: collection status %q", ErrUnknownStatus, s)
	}
}

func (t *CollectionStatus) UnmarshalJSON(data []byte) error {
	s, err := decodeEnumString(data, "collection status")
	if err != nil {
		return err
	}
	v, err := ParseCollectionStatus(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ProvisionStatus is the status vocabulary of the Provision workflow.
type ProvisionStatus string

const (
	ProvisionEnProceso        ProvisionStatus = "ProvisionEnProceso"
	ProvisionListoParaEntrega ProvisionStatus = "ListoParaEntrega"
	ProvisionEntregado        ProvisionStatus = "Entregado"
)

var AllProvisionStatuses = []ProvisionStatus{
	ProvisionEnProceso,
	ProvisionListoParaEntrega,
	ProvisionEntregado,
}

func ParseProvisionStatus(s string) (ProvisionStatus, error) {
	switch s {
	case "ProvisionEnProceso":
		return ProvisionEnProceso, nil
	case "ListoParaEntrega":
		return ProvisionListoParaEntrega, nil
	case "Entregado":
		return ProvisionEntregado, nil
	default:
		return "", fmt.Errorf("%w: provision status %q", ErrUnknownStatus, s)
	}
}

func (t *ProvisionStatus) UnmarshalJSON(data []byte) error {
	s, err := decodeEnumString(data, "provision status")
	if err != nil {
		return err
	}
	v, err := ParseProvisionStatus(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type ContainerType string

const (
	ContainerTypeBag      ContainerType = "Bag"
	ContainerTypeEnvelope ContainerType = "Envelope"
)

func ParseContainerType(s string) (ContainerType, error) {
	switch s {
	case "Bag":
		return ContainerTypeBag, nil
	case "Envelope":
		return ContainerTypeEnvelope, nil
	default:
		return "", errors.New("invalid container type")
	}
}

func (t *ContainerType) UnmarshalJSON(data []byte) error {
	s, err := decodeEnumString(data, "container type")
	if err != nil {
		return err
	}
	v, err := ParseContainerType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type EnvelopeSubType string

const (
	EnvelopeSubTypeCash     EnvelopeSubType = "Cash"
	EnvelopeSubTypeCheck    EnvelopeSubType = "Check"
	EnvelopeSubTypeDocument EnvelopeSubType = "Document"
	EnvelopeSubTypeMixed    EnvelopeSubType = "Mixed"
)

func ParseEnvelopeSubType(s string) (EnvelopeSubType, error) {
	switch s {
	case "Cash":
		return EnvelopeSubTypeCash, nil
	case "Check":
		return EnvelopeSubTypeCheck, nil
	case "Document":
		return EnvelopeSubTypeDocument, nil
	case "Mixed":
		return EnvelopeSubTypeMixed, nil
	default:
		return "", errors.New("invalid envelope sub type")
	}
}

func (t *EnvelopeSubType) UnmarshalJSON(data []byte) error {
	s, err := decodeEnumString(data, "envelope sub type")
	if err != nil {
		return err
	}
	v, err := ParseEnvelopeSubType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type ContainerStatus string

const (
	ContainerStatusOpen    ContainerStatus = "Open"
	ContainerStatusCounted ContainerStatus = "Counted"
)

type ValueType string

const (
	ValueTypeBill     ValueType = "Bill"
	ValueTypeCoin     ValueType = "Coin"
	ValueTypeCheck    ValueType = "Check"
	ValueTypeDocument ValueType = "Document"
)

func ParseValueType(s string) (ValueType, error) {
	switch s {
	case "Bill":
		return ValueTypeBill, nil
	case "Coin":
		return ValueTypeCoin, nil
	case "Check":
		return ValueTypeCheck, nil
	case "Document":
		return ValueTypeDocument, nil
	default:
		return "", errors.New("invalid value type")
	}
}

func (t *ValueType) UnmarshalJSON(data []byte) error {
	s, err := decodeEnumString(data, "value type")
	if err != nil {
		return err
	}
	v, err := ParseValueType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type IncidentCategory string

const (
	IncidentShortage               IncidentCategory = "Shortage"
	IncidentMixedShortage          IncidentCategory = "MixedShortage"
	IncidentFake                   IncidentCategory = "Fake"
	IncidentOverage                IncidentCategory = "Overage"
	IncidentMixedOverage           IncidentCategory = "MixedOverage"
	IncidentDamaged                IncidentCategory = "Damaged"
	IncidentCountingError          IncidentCategory = "CountingError"
	IncidentContainerInconsistency IncidentCategory = "ContainerInconsistency"
	IncidentOther                  IncidentCategory = "Other"
)

// AllIncidentCategories must list every category; tests check each has a sign.
var AllIncidentCategories = []IncidentCategory{
	IncidentShortage,
	IncidentMixedShortage,
	IncidentFake,
	IncidentOverage,
	IncidentMixedOverage,
	IncidentDamaged,
	IncidentCountingError,
	IncidentContainerInconsistency,
	IncidentOther,
}

// Sign is the direction an approved incident moves the counted total toward
// the declared one: +1 adds back a shortfall, -1 removes a surplus, 0 is
// informative only.
func (c IncidentCategory) Sign() (int, error) {
	switch c {
	case IncidentShortage, IncidentMixedShortage, IncidentFake:
		return 1, nil
	case IncidentOverage, IncidentMixedOverage:
		return -1, nil
	case IncidentDamaged, IncidentCountingError, IncidentContainerInconsistency, IncidentOther:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
	}
}

func ParseIncidentCategory(s string) (IncidentCategory, error) {
	c := IncidentCategory(s)
	if _, err := c.Sign(); err != nil {
		return "", err
	}
	return c, nil
}

func (t *IncidentCategory) UnmarshalJSON(data []byte) error {
	s, err := decodeEnumString(data, "incident category")
	if err != nil {
		return err
	}
	v, err := ParseIncidentCategory(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type IncidentStatus string

const (
	IncidentStatusReported IncidentStatus = "Reported"
	IncidentStatusAdjusted IncidentStatus = "Adjusted"
	IncidentStatusApproved IncidentStatus = "Approved"
	IncidentStatusRejected IncidentStatus = "Rejected"
)

func ParseIncidentStatus(s string) (IncidentStatus, error) {
	switch s {
	case "Reported":
		return IncidentStatusReported, nil
	case "Adjusted":
		return IncidentStatusAdjusted, nil
	case "Approved":
		return IncidentStatusApproved, nil
	case "Rejected":
		return IncidentStatusRejected, nil
	default:
		return "", fmt.Errorf("%w: incident status %q", ErrUnknownStatus, s)
	}
}

func (t *IncidentStatus) UnmarshalJSON(data []byte) error {
	s, err := decodeEnumString(data, "incident status")
	if err != nil {
		return err
	}
	v, err := ParseIncidentStatus(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// IsPending reports whether the incident still blocks approval.
func (s IncidentStatus) IsPending() bool {
	return s == IncidentStatusReported || s == IncidentStatusAdjusted
}

// ServiceProgress is the progress code of an external service order.
type ServiceProgress int

const (
	ServiceProgressRequested  ServiceProgress = 0
	ServiceProgressConfirmed  ServiceProgress = 1
	ServiceProgressRejected   ServiceProgress = 2
	ServiceProgressInProgress ServiceProgress = 4
	ServiceProgressCompleted  ServiceProgress = 5
	ServiceProgressCancelled  ServiceProgress = 6
)

// IsTerminal reports whether the code is a definitive business outcome.
func (p ServiceProgress) IsTerminal() bool {
	return p == ServiceProgressRejected || p == ServiceProgressCompleted || p == ServiceProgressCancelled
}

type AuditOutcome string

const (
	AuditOutcomeInfo    AuditOutcome = "Info"
	AuditOutcomeWarning AuditOutcome = "Warning"
	AuditOutcomeError   AuditOutcome = "Error"
)
