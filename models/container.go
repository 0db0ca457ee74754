package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Container is a bag or envelope of one cash transaction. Bags may hold
// envelopes through ParentContainerId.
type Container struct {
	ID                int              `gorm:"primary_key" json:"id"`
	CashTransactionId int              `gorm:"not null;uniqueIndex:idx_container_tx_code,priority:1" json:"cash_transaction_id"`
	ParentContainerId *int             `gorm:"index" json:"parent_container_id"`
	Code              string           `gorm:"size:64;not null;uniqueIndex:idx_container_tx_code,priority:2" json:"code"`
	Type              ContainerType    `gorm:"type:enum('Bag','Envelope');not null" json:"type"`
	EnvelopeSubType   *EnvelopeSubType `gorm:"type:enum('Cash','Check','Document','Mixed')" json:"envelope_sub_type"`
	Status            ContainerStatus  `gorm:"size:20;not null;default:'Open'" json:"status"`
	Subtotal          decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	ProcessedBy       int              `gorm:"not null;default:0" json:"processed_by"`
	ProcessedAt       *time.Time       `json:"processed_at"`
	Observations      string           `gorm:"type:text" json:"observations"`
	ValueDetails      []ValueDetail    `gorm:"foreignKey:ContainerId" json:"value_details"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValueDetail is one counted denomination/quality line of a container.
type ValueDetail struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	ContainerId        int             `gorm:"index;not null" json:"container_id"`
	CashTransactionId  int             `gorm:"index;not null" json:"cash_transaction_id"`
	ValueType          ValueType       `gorm:"type:enum('Bill','Coin','Check','Document');not null" json:"value_type"`
	Quantity           int             `gorm:"not null;default:0" json:"quantity"`
	BundlesCount       int             `gorm:"not null;default:0" json:"bundles_count"`
	LoosePiecesCount   int             `gorm:"not null;default:0" json:"loose_pieces_count"`
	UnitValue          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_value"`
	CalculatedAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"calculated_amount"`
	DenominationId     *int            `gorm:"index" json:"denomination_id"`
	QualityId          *int            `json:"quality_id"`
	IsHighDenomination bool            `gorm:"not null;default:false" json:"is_high_denomination"`
	EntityBankId       *int            `json:"entity_bank_id"`
	IssueDate          *time.Time      `json:"issue_date"`
	Observations       string          `gorm:"type:text" json:"observations"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewValueDetail struct {
	ValueType          ValueType        `json:"value_type" validate:"required"`
	Quantity           *int             `json:"quantity" validate:"omitempty,gte=0"`
	BundlesCount       *int             `json:"bundles_count" validate:"omitempty,gte=0"`
	LoosePiecesCount   *int             `json:"loose_pieces_count" validate:"omitempty,gte=0"`
	UnitValue          *decimal.Decimal `json:"unit_value"`
	CalculatedAmount   *decimal.Decimal `json:"calculated_amount"`
	DenominationId     *int             `json:"denomination_id"`
	QualityId          *int             `json:"quality_id"`
	IsHighDenomination *bool            `json:"is_high_denomination"`
	EntityBankId       *int             `json:"entity_bank_id"`
	IssueDate          *time.Time       `json:"issue_date"`
	Observations       *string          `json:"observations"`
}

type NewContainer struct {
	ContainerCode       string           `json:"container_code" validate:"required,max=64"`
	ContainerType       ContainerType    `json:"container_type" validate:"required"`
	EnvelopeSubType     *EnvelopeSubType `json:"envelope_sub_type"`
	ParentContainerCode *string          `json:"parent_container_code" validate:"omitempty,max=64"`
	Observations        *string          `json:"observations"`
	ValueDetails        []NewValueDetail `json:"value_details" validate:"dive"`
}

type ValueTypePolicy interface {
	IsAllowed(valueType ValueType) bool
}

type ContainerPolicy interface {
	IsAllowedContainer(containerType ContainerType, subType *EnvelopeSubType) bool
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// CalculateAmount derives UnitValue * Quantity when no amount was submitted
// and both factors are positive; otherwise the submitted amount wins.
func CalculateAmount(unitValue *decimal.Decimal, quantity *int, submitted *decimal.Decimal) decimal.Decimal {
	if submitted != nil && !submitted.IsZero() {
		return *submitted
	}
	if unitValue != nil && quantity != nil && unitValue.IsPositive() && *quantity > 0 {
		return unitValue.Mul(decimal.NewFromInt(int64(*quantity)))
	}
	return decimal.Zero
}

// BuildValueDetails turns submitted lines into rows for containerId and
// returns them with their subtotal.
func BuildValueDetails(transactionId int, containerId int, inputs []NewValueDetail) ([]ValueDetail, decimal.Decimal) {
	subtotal := decimal.Zero
	details := make([]ValueDetail, 0, len(inputs))
	for _, in := range inputs {
		detail := ValueDetail{
			ContainerId:        containerId,
			CashTransactionId:  transactionId,
			ValueType:          in.ValueType,
			Quantity:           utils.DereferencePtr(in.Quantity),
			BundlesCount:       utils.DereferencePtr(in.BundlesCount),
			LoosePiecesCount:   utils.DereferencePtr(in.LoosePiecesCount),
			UnitValue:          utils.DereferencePtr(in.UnitValue, decimal.Zero),
			CalculatedAmount:   CalculateAmount(in.UnitValue, in.Quantity, in.CalculatedAmount),
			DenominationId:     in.DenominationId,
			QualityId:          in.QualityId,
			IsHighDenomination: utils.DereferencePtr(in.IsHighDenomination),
			EntityBankId:       in.EntityBankId,
			IssueDate:          in.IssueDate,
			Observations:       utils.DereferencePtr(in.Observations),
		}
		subtotal = subtotal.Add(detail.CalculatedAmount)
		details = append(details, detail)
	}
	return details, subtotal
}

// SumSubtotal is the sum of calculated amounts of details.
func SumSubtotal(details []ValueDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.CalculatedAmount)
	}
	return total
}

// ContainerNode is the nesting view of a stored container, keyed by code.
type ContainerNode struct {
	Type       ContainerType
	ParentCode string
}

// ContainerNodes builds the nesting view of stored containers.
func ContainerNodes(stored []Container) map[string]ContainerNode {
	codeById := make(map[int]string, len(stored))
	for _, c := range stored {
		codeById[c.ID] = c.Code
	}
	nodes := make(map[string]ContainerNode, len(stored))
	for _, c := range stored {
		node := ContainerNode{Type: c.Type}
		if c.ParentContainerId != nil {
			node.ParentCode = codeById[*c.ParentContainerId]
		}
		nodes[c.Code] = node
	}
	return nodes
}

// ValidateSubmissions checks a whole submission before anything is written:
// unique codes, value types and container kinds allowed by the policies,
// non-negative amounts, and a nesting where every parent is a bag that exists
// in the submission or among stored, with no cycles.
func ValidateSubmissions(submissions []NewContainer, stored map[string]ContainerNode, valueTypes ValueTypePolicy, containers ContainerPolicy) error {
	seen := make(map[string]bool, len(submissions))
	for _, sub := range submissions {
		if seen[sub.ContainerCode] {
			return fmt.Errorf("%w: %q", ErrDuplicateContainerCode, sub.ContainerCode)
		}
		seen[sub.ContainerCode] = true
	}

	for _, sub := range submissions {
		if containers != nil && !containers.IsAllowedContainer(sub.ContainerType, sub.EnvelopeSubType) {
			subType := "none"
			if sub.EnvelopeSubType != nil {
				subType = string(*sub.EnvelopeSubType)
			}
			return fmt.Errorf("%w: %s (sub type %s) in container %q", ErrDisallowedContainer, sub.ContainerType, subType, sub.ContainerCode)
		}
		for _, vd := range sub.ValueDetails {
			if !valueTypes.IsAllowed(vd.ValueType) {
				return fmt.Errorf("%w: %s in container %q", ErrDisallowedValueType, vd.ValueType, sub.ContainerCode)
			}
			if (vd.UnitValue != nil && vd.UnitValue.IsNegative()) || (vd.CalculatedAmount != nil && vd.CalculatedAmount.IsNegative()) {
				return fmt.Errorf("%w: %s in container %q", ErrNegativeAmount, vd.ValueType, sub.ContainerCode)
			}
		}
	}

	// the submission overrides stored nodes with the same code
	nodes := make(map[string]ContainerNode, len(stored)+len(submissions))
	for code, node := range stored {
		nodes[code] = node
	}
	for _, sub := range submissions {
		node := ContainerNode{Type: sub.ContainerType}
		if sub.ParentContainerCode != nil {
			node.ParentCode = *sub.ParentContainerCode
		}
		nodes[sub.ContainerCode] = node
	}

	for _, sub := range submissions {
		if sub.ParentContainerCode == nil {
			continue
		}
		parentCode := *sub.ParentContainerCode
		if parentCode == sub.ContainerCode {
			return fmt.Errorf("%w: container %q cannot contain itself", ErrDisallowedContainer, parentCode)
		}
		parent, ok := nodes[parentCode]
		if !ok {
			return fmt.Errorf("%w: parent %q of container %q", ErrContainerNotFound, parentCode, sub.ContainerCode)
		}
		if parent.Type != ContainerTypeBag {
			return fmt.Errorf("%w: parent %q of container %q is a %s, not a bag", ErrDisallowedContainer, parentCode, sub.ContainerCode, parent.Type)
		}
	}

	// a stored child keeps pointing at a submitted code, so its parent may
	// have been retyped
	for code, node := range nodes {
		if node.ParentCode == "" {
			continue
		}
		if parent, ok := nodes[node.ParentCode]; ok && parent.Type != ContainerTypeBag {
			return fmt.Errorf("%w: parent %q of container %q is a %s, not a bag", ErrDisallowedContainer, node.ParentCode, code, parent.Type)
		}
	}

	for _, sub := range submissions {
		if err := checkNestingCycle(nodes, sub.ContainerCode); err != nil {
			return err
		}
	}
	return nil
}

func checkNestingCycle(nodes map[string]ContainerNode, start string) error {
	visited := map[string]bool{start: true}
	for code := nodes[start].ParentCode; code != ""; code = nodes[code].ParentCode {
		if visited[code] {
			return fmt.Errorf("%w: container %q is nested inside itself through %q", ErrDisallowedContainer, start, code)
		}
		visited[code] = true
	}
	return nil
}

// SaveContainersAndDetails upserts the submitted containers of a transaction
// by code and replaces each container's value details with the submitted set.
// The whole submission is validated before the first write. tx must be a DB
// transaction; totals of the header are not touched.
func SaveContainersAndDetails(ctx context.Context, tx *gorm.DB, transactionId int, submissions []NewContainer, userId int, valueTypes ValueTypePolicy, containers ContainerPolicy) ([]Container, error) {
	count, err := utils.ResourceCountWhere[CashTransaction](ctx, tx, "id = ?", transactionId)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrTransactionNotFound
	}

	var existing []Container
	if err := tx.WithContext(ctx).Where("cash_transaction_id = ?", transactionId).Find(&existing).Error; err != nil {
		return nil, err
	}
	byCode := make(map[string]*Container, len(existing))
	for i := range existing {
		byCode[existing[i].Code] = &existing[i]
	}

	if err := ValidateSubmissions(submissions, ContainerNodes(existing), valueTypes, containers); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	saved := make([]Container, 0, len(submissions))
	for _, sub := range submissions {
		container, ok := byCode[sub.ContainerCode]
		if !ok {
			container = &Container{
				CashTransactionId: transactionId,
				Code:              sub.ContainerCode,
				Type:              sub.ContainerType,
				Status:            ContainerStatusOpen,
				Subtotal:          decimal.Zero,
			}
			if err := tx.WithContext(ctx).Create(container).Error; err != nil {
				if isDuplicateKeyErr(err) {
					return nil, fmt.Errorf("%w: %q", ErrDuplicateContainerCode, sub.ContainerCode)
				}
				return nil, err
			}
			byCode[sub.ContainerCode] = container
		}

		// replace-semantics: the stored rows always equal the latest submission
		if err := detachIncidentsFromValueDetails(ctx, tx, container.ID); err != nil {
			return nil, err
		}
		if err := tx.WithContext(ctx).Where("container_id = ?", container.ID).Delete(&ValueDetail{}).Error; err != nil {
			return nil, err
		}
		details, subtotal := BuildValueDetails(transactionId, container.ID, sub.ValueDetails)
		if len(details) > 0 {
			if err := tx.WithContext(ctx).Create(&details).Error; err != nil {
				return nil, err
			}
		}

		status := ContainerStatusCounted
		if len(details) == 0 {
			status = ContainerStatusOpen
		}
		container.Type = sub.ContainerType
		container.EnvelopeSubType = sub.EnvelopeSubType
		container.Status = status
		container.Subtotal = subtotal
		container.ProcessedBy = userId
		container.ProcessedAt = &now
		if sub.Observations != nil {
			container.Observations = *sub.Observations
		}
		container.ValueDetails = details
		saved = append(saved, *container)
	}

	// parents are resolved after every submitted container has an id
	for i, sub := range submissions {
		var parentId *int
		if sub.ParentContainerCode != nil {
			parent := byCode[*sub.ParentContainerCode]
			parentId = &parent.ID
		}
		saved[i].ParentContainerId = parentId
		if err := tx.WithContext(ctx).Model(&Container{}).Where("id = ?", saved[i].ID).Updates(map[string]interface{}{
			"type":                saved[i].Type,
			"envelope_sub_type":   saved[i].EnvelopeSubType,
			"status":              saved[i].Status,
			"subtotal":            saved[i].Subtotal,
			"processed_by":        saved[i].ProcessedBy,
			"processed_at":        saved[i].ProcessedAt,
			"observations":        saved[i].Observations,
			"parent_container_id": parentId,
		}).Error; err != nil {
			return nil, err
		}
	}

	return saved, nil
}

// detachIncidentsFromValueDetails moves incidents that reference a value
// detail of containerId onto the container itself before the details are
// replaced.
func detachIncidentsFromValueDetails(ctx context.Context, tx *gorm.DB, containerId int) error {
	detailIds := tx.WithContext(ctx).Model(&ValueDetail{}).Select("id").Where("container_id = ?", containerId)
	return tx.WithContext(ctx).Model(&Incident{}).
		Where("value_detail_id IN (?)", detailIds).
		Updates(map[string]interface{}{
			"value_detail_id": nil,
			"container_id":    containerId,
		}).Error
}

func ListContainers(ctx context.Context, db *gorm.DB, transactionId int) ([]Container, error) {
	var containers []Container
	err := db.WithContext(ctx).
		Preload("ValueDetails", func(db *gorm.DB) *gorm.DB {
			return db.Order("value_details.id")
		}).
		Where("cash_transaction_id = ?", transactionId).
		Order("id").
		Find(&containers).Error
	if err != nil {
		return nil, err
	}
	return containers, nil
}
