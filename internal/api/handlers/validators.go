package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/soul-service/soul_service/internal/domain/entities"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("txtype", validTransactionType)
	}
}

// validTransactionType accepts only the known transaction type values
func validTransactionType(fl validator.FieldLevel) bool {
	return entities.TransactionType(fl.Field().String()).Validate() == nil
}
