package domain

// Direction classifies the money movement of a transaction. The amount on a
// Transaction is always a non-negative magnitude; Direction carries the sign
// semantics.
type Direction string

const (
	DirectionIncome      Direction = "income"
	DirectionExpense     Direction = "expense"
	DirectionTransferIn  Direction = "transfer_in"
	DirectionTransferOut Direction = "transfer_out"
	DirectionFee         Direction = "fee"
	DirectionRefund      Direction = "refund"
	DirectionOther       Direction = "other"
)

// Category is one entry of the fixed transaction taxonomy.
type Category string

const (
	// Income categories
	CategorySalary            Category = "salary"
	CategoryFreelance         Category = "freelance"
	CategoryBusinessIncome    Category = "business_income"
	CategoryCommission        Category = "commission"
	CategoryTips              Category = "tips"
	CategoryRentalIncome      Category = "rental_income"
	CategoryInvestmentIncome  Category = "investment_income"
	CategoryGovernmentBenefit Category = "government_benefit"
	CategoryLoanReceived      Category = "loan_received"
	CategoryGiftReceived      Category = "gift_received"

	// Expense categories
	CategoryFood            Category = "food"
	CategoryTransportation  Category = "transportation"
	CategoryUtilities       Category = "utilities"
	CategoryRent            Category = "rent"
	CategoryHealthcare      Category = "healthcare"
	CategoryEducation       Category = "education"
	CategoryEntertainment   Category = "entertainment"
	CategoryShopping        Category = "shopping"
	CategoryLoanPayment     Category = "loan_payment"
	CategoryInsurance       Category = "insurance"
	CategoryBusinessExpense Category = "business_expense"
	CategoryFamilySupport   Category = "family_support"

	// Transfer categories
	CategoryBankTransfer    Category = "bank_transfer"
	CategoryEwalletTransfer Category = "ewallet_transfer"
	CategoryCashIn          Category = "cash_in"
	CategoryCashOut         Category = "cash_out"

	// Fee categories
	CategoryTransactionFee Category = "transaction_fee"
	CategoryServiceFee     Category = "service_fee"
	CategoryATMFee         Category = "atm_fee"

	CategoryOther Category = "other"
)

// IncomeCategories lists the taxonomy entries valid for income transactions.
var IncomeCategories = []Category{
	CategorySalary,
	CategoryFreelance,
	CategoryBusinessIncome,
	CategoryCommission,
	CategoryTips,
	CategoryRentalIncome,
	CategoryInvestmentIncome,
	CategoryGovernmentBenefit,
	CategoryLoanReceived,
	CategoryGiftReceived,
}

// ExpenseCategories lists the taxonomy entries valid for expense transactions.
var ExpenseCategories = []Category{
	CategoryFood,
	CategoryTransportation,
	CategoryUtilities,
	CategoryRent,
	CategoryHealthcare,
	CategoryEducation,
	CategoryEntertainment,
	CategoryShopping,
	CategoryLoanPayment,
	CategoryInsurance,
	CategoryBusinessExpense,
	CategoryFamilySupport,
}

// TransferCategories lists the taxonomy entries valid for transfers.
var TransferCategories = []Category{
	CategoryBankTransfer,
	CategoryEwalletTransfer,
	CategoryCashIn,
	CategoryCashOut,
}

// FeeCategories lists the taxonomy entries valid for fees.
var FeeCategories = []Category{
	CategoryTransactionFee,
	CategoryServiceFee,
	CategoryATMFee,
}

var validCategories = buildCategorySet()

func buildCategorySet() map[Category]bool {
	set := map[Category]bool{CategoryOther: true}
	for _, group := range [][]Category{IncomeCategories, ExpenseCategories, TransferCategories, FeeCategories} {
		for _, c := range group {
			set[c] = true
		}
	}
	return set
}

// ValidCategory reports whether c is part of the fixed taxonomy.
func ValidCategory(c Category) bool {
	return validCategories[c]
}

var validDirections = map[Direction]bool{
	DirectionIncome:      true,
	DirectionExpense:     true,
	DirectionTransferIn:  true,
	DirectionTransferOut: true,
	DirectionFee:         true,
	DirectionRefund:      true,
	DirectionOther:       true,
}

// ValidDirection reports whether d is a known transaction direction.
func ValidDirection(d Direction) bool {
	return validDirections[d]
}

// Confidence is the tier assigned by the categorization service.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceVeryLow Confidence = "very_low"
	ConfidenceNone    Confidence = "none"
)

var validConfidences = map[Confidence]bool{
	ConfidenceHigh:    true,
	ConfidenceMedium:  true,
	ConfidenceLow:     true,
	ConfidenceVeryLow: true,
	ConfidenceNone:    true,
}

// ValidConfidence reports whether c is a known confidence tier.
func ValidConfidence(c Confidence) bool {
	return validConfidences[c]
}
