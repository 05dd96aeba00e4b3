package repository

import (
	"time"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// OutboxModel is the shape of every legacy mailbox table (mensaje_a_*).
// Reads are positional, so only the migration relies on these names.
type OutboxModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Body        string    `gorm:"column:men_mensaje;type:text;not null"`
	Destination string    `gorm:"column:men_destino;type:varchar(255)"`
	ClientCode  string    `gorm:"column:men_cliente;type:varchar(32);not null"`
	Status      int       `gorm:"column:men_status;not null;default:0;index"`
	CreatedAt   time.Time `gorm:"column:men_fecha"`
}

// ClientModel maps the subscriber table.
type ClientModel struct {
	Code   string `gorm:"column:cli_codigo;type:varchar(32);primaryKey"`
	Name   string `gorm:"column:cli_nombre;type:varchar(255)"`
	Phones string `gorm:"column:CLI_CELULAR;type:varchar(255)"`
	Emails string `gorm:"column:cli_mail;type:varchar(255)"`
}

func (ClientModel) TableName() string {
	return "cli_clientes"
}

// AlarmContactModel is a row of clientes_whatsapp or clientes_llamada.
type AlarmContactModel struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Client string `gorm:"column:abonado;type:varchar(32);not null;index"`
	Name   string `gorm:"column:nombre;type:varchar(255)"`
	Phone  string `gorm:"column:telefono;type:varchar(64);not null"`
	Event  string `gorm:"column:evento;type:varchar(255)"`
}

// ChatBindingModel maps telegram_chat.
type ChatBindingModel struct {
	Phone  string `gorm:"column:telefono;type:varchar(64);primaryKey"`
	ChatID int64  `gorm:"column:chat_id;not null"`
}

func (ChatBindingModel) TableName() string {
	return "telegram_chat"
}

// ObservationModel is one audit entry. The table name is configurable.
type ObservationModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"column:fecha;not null"`
	Text      string    `gorm:"column:observacion;type:varchar(500);not null"`
}

func alarmContactModelToDomain(m *AlarmContactModel) *domain.Recipient {
	if m == nil {
		return nil
	}

	return &domain.Recipient{
		Address:        m.Phone,
		CooldownKey:    m.Client,
		Name:           m.Name,
		TriggerPattern: m.Event,
	}
}

func chatBindingModelFromDomain(b *domain.ChatBinding) *ChatBindingModel {
	if b == nil {
		return nil
	}

	return &ChatBindingModel{
		Phone:  b.Phone,
		ChatID: b.ChatID,
	}
}

func chatBindingModelToDomain(m *ChatBindingModel) *domain.ChatBinding {
	if m == nil {
		return nil
	}

	return &domain.ChatBinding{
		Phone:  m.Phone,
		ChatID: m.ChatID,
	}
}

func observationModelFromDomain(o *domain.Observation) *ObservationModel {
	if o == nil {
		return nil
	}

	return &ObservationModel{
		CreatedAt: o.CreatedAt,
		Text:      o.Text,
	}
}
