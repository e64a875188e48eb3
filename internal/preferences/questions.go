package preferences

import "github.com/temcen/glowrank/pkg/models"

// Question is one entry of the preference quiz. Questions without options
// take free text.
type Question struct {
	Key     string
	Prompt  string
	Options []string
	// Multi marks questions answered with a list of choices.
	Multi bool
	// Descriptive marks choice questions whose option text describes the
	// wanted product and feeds the text-match query.
	Descriptive bool
}

// FreeText reports whether the question takes free text.
func (q Question) FreeText() bool {
	return len(q.Options) == 0
}

// Quiz keys with special handling.
const (
	KeySkinType    = "skin_type"
	KeyBudget      = "budget"
	KeyBrand       = "brand_preference"
	KeyForbidden   = models.ForbiddenTopic
	KeyInStockOnly = "only_in_stock"
)

// noneOption is the "none of them" choice of active_ingredients.
const noneOption = "هیچکدام"

// Questions is the quiz in presentation order.
var Questions = []Question{
	{Key: KeySkinType, Prompt: "نوع پوست خود را مشخص کنید", Descriptive: true,
		Options: []string{"نرمال", "خشک", "چرب", "ترکیبی", "حساس"}},
	{Key: "main_concern", Prompt: "اصلی‌ترین مشکل یا نگرانی پوستی شما چیست؟", Multi: true, Descriptive: true,
		Options: []string{
			"چروک و خطوط ریز", "آکنه و جوش", "منافذ باز", "قرمزی و التهاب",
			"خشکی", "پف و حلقه دور چشم", "پوست کدر",
			"چربی بیش از حد", "عدم یکنواختی رنگ", "لکه‌های قهوه‌ای",
		}},
	{Key: "product_type", Prompt: "نوع محصولی که به دنبال آن هستید چیست؟", Descriptive: true,
		Options: []string{"مرطوب‌کننده", "ضد آفتاب", "ضد چروک", "روشن‌کننده", "ضد جوش", "تونر", "پاک‌کننده"}},
	{Key: "features", Prompt: "چه ویژگی‌هایی در محصول برای شما اهمیت دارد؟", Multi: true, Descriptive: true,
		Options: []string{
			"مات‌کننده", "جذب سریع", "تغذیه‌کننده", "حاوی ویتامین C",
			"حاوی اسید هیالورونیک", "بدون عطری", "بدون الکل",
			"فاقد پارابن", "مناسب پوست حساس", "لایه‌بردار ملایم",
		}},
	{Key: KeyBudget, Prompt: "بودجه تقریبی خود برای خرید محصول را انتخاب کنید",
		Options: budgetLabels()},
	{Key: KeyBrand, Prompt: "آیا ترجیح خاصی برای برند محصول دارید؟",
		Options: []string{
			"ناتورال", "بیولب", "آکوا بیوتی", "اُرگانیکا",
			"ریوِرا", "کلینیکا", "درمالاین", "پِلِنا",
			"سِرِنا", "سِنسِرا", models.NoBrandPreference,
		}},
	{Key: "texture", Prompt: "بافت محصول مورد نظر شما چگونه باشد؟", Descriptive: true,
		Options: []string{"سرم", "ژل", "کرم", "بالم", "موس", "امولسیون", "اسپری", "فوم"}},
	{Key: "paraben_free", Prompt: "آیا محصول فاقد پارابن برای شما مهم است؟",
		Options: []string{"مهم", "فعلاً مهم نیست"}},
	{Key: "alcohol_free", Prompt: "آیا محصول فاقد الکل برای شما مهم است؟",
		Options: []string{"مهم", "فعلاً مهم نیست"}},
	{Key: "fragrance_free", Prompt: "آیا محصول بدون عطر برای شما مهم است؟",
		Options: []string{"مهم", "فعلاً مهم نیست"}},
	{Key: "absorption", Prompt: "ترجیح شما برای جذب محصول چیست؟",
		Options: []string{"جذب سریع", "ماندگاری بالا", "هر دو مهم نیست"}},
	{Key: "active_ingredients", Prompt: "چه مواد فعالی برای شما اهمیت دارد؟", Multi: true, Descriptive: true,
		Options: []string{
			"هیالورونیک اسید", "ویتامین C", "اسید سالیسیلیک",
			"نیکوتین‌آمید", "پپتیدها", "رتینول", noneOption,
		}},
	{Key: KeyForbidden, Prompt: "چه مواد یا ترکیباتی برای شما ممنوع است؟"},
	{Key: "current_products", Prompt: "محصولات فعلی خود را که استفاده می‌کنید نام ببرید"},
	{Key: "wishlist_feature", Prompt: "ویژگی‌های دلخواهی که از محصول انتظار دارید چیست؟"},
	{Key: "other_notes", Prompt: "سایر نکات یا توضیحات خود را وارد کنید"},
}

var questionIndex = func() map[string]int {
	m := make(map[string]int, len(Questions))
	for i, q := range Questions {
		m[q.Key] = i
	}
	return m
}()

// Lookup returns the question with key.
func Lookup(key string) (Question, bool) {
	i, ok := questionIndex[key]
	if !ok {
		return Question{}, false
	}
	return Questions[i], true
}
